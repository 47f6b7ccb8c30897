// Package command implements the (argv[0], argc) dispatch table that
// turns a parsed request into a response body.
package command

import (
	"errors"
	"math"
	"strconv"

	"github.com/edirooss/kvserver/internal/store"
	"github.com/edirooss/kvserver/internal/wire"
)

type handler func(s *store.Store, args []string, out []byte) []byte

type key struct {
	name string
	argc int
}

var table = map[key]handler{
	{"GET", 2}:    doGet,
	{"SET", 3}:    doSet,
	{"DEL", 2}:    doDel,
	{"KEYS", 1}:   doKeys,
	{"ZADD", 4}:   doZAdd,
	{"ZREM", 3}:   doZRem,
	{"ZSCORE", 3}: doZScore,
	{"ZQUERY", 6}: doZQuery,
}

// Dispatch runs the command named by args[0] against s, appending its
// response value to out and returning the grown slice. Unknown
// commands (including known names with the wrong argument count)
// produce a TAG_ERR(ErrUnknown) body.
func Dispatch(s *store.Store, args []string, out []byte) []byte {
	if len(args) == 0 {
		return wire.AppendErr(out, wire.ErrUnknown, "empty command")
	}
	h, ok := table[key{args[0], len(args)}]
	if !ok {
		return wire.AppendErr(out, wire.ErrUnknown, "unknown command")
	}
	return h(s, args, out)
}

func doGet(s *store.Store, args []string, out []byte) []byte {
	val, found, err := s.GetString(args[1])
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadType, "not a string value")
	}
	if !found {
		return wire.AppendNil(out)
	}
	return wire.AppendStr(out, val)
}

func doSet(s *store.Store, args []string, out []byte) []byte {
	if err := s.SetString(args[1], args[2]); err != nil {
		return wire.AppendErr(out, wire.ErrBadType, "not a string value")
	}
	return wire.AppendNil(out)
}

func doDel(s *store.Store, args []string, out []byte) []byte {
	removed := s.Delete(args[1])
	if removed {
		return wire.AppendInt(out, 1)
	}
	return wire.AppendInt(out, 0)
}

func doKeys(s *store.Store, _ []string, out []byte) []byte {
	keys := s.Keys()
	out = wire.AppendArr(out, uint32(len(keys)))
	for _, k := range keys {
		out = wire.AppendStr(out, k)
	}
	return out
}

//+------+------+-------+------+
//| ZADD | zset | score | name |
//+------+------+-------+------+
func doZAdd(s *store.Store, args []string, out []byte) []byte {
	score, err := parseScore(args[2])
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadArg, "expected float")
	}
	added, err := s.ZAdd(args[1], args[3], score)
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadType, "expected zset")
	}
	if added {
		return wire.AppendInt(out, 1)
	}
	return wire.AppendInt(out, 0)
}

//+------+------+------+
//| ZREM | zset | name |
//+------+------+------+
func doZRem(s *store.Store, args []string, out []byte) []byte {
	removed, err := s.ZRem(args[1], args[2])
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadType, "expected zset")
	}
	if removed {
		return wire.AppendInt(out, 1)
	}
	return wire.AppendInt(out, 0)
}

//+--------+------+------+
//| ZSCORE | zset | name |
//+--------+------+------+
func doZScore(s *store.Store, args []string, out []byte) []byte {
	score, found, err := s.ZScore(args[1], args[2])
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadType, "expected zset")
	}
	if !found {
		return wire.AppendNil(out)
	}
	return wire.AppendDbl(out, score)
}

//+--------+-----+-------+------+--------+-------+
//| ZQUERY | key | score | name | offset | limit |
//+--------+-----+-------+------+--------+-------+
func doZQuery(s *store.Store, args []string, out []byte) []byte {
	score, err := parseFloat(args[2])
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadArg, "expected float")
	}
	name := args[3]
	offset, err1 := strconv.ParseInt(args[4], 10, 64)
	limit, err2 := strconv.ParseInt(args[5], 10, 64)
	if err1 != nil || err2 != nil {
		return wire.AppendErr(out, wire.ErrBadArg, "expected int")
	}

	pairs, err := s.ZQuery(args[1], score, name, offset, limit)
	if err != nil {
		return wire.AppendErr(out, wire.ErrBadType, "expected zset")
	}

	out, ctx := wire.BeginArr(out)
	for _, p := range pairs {
		out = wire.AppendStr(out, p.Name)
		out = wire.AppendDbl(out, p.Score)
	}
	wire.EndArr(out, ctx, uint32(2*len(pairs)))
	return out
}

var (
	errNaN = errors.New("command: NaN is not a valid score")
	errInf = errors.New("command: infinite scores cannot be stored")
)

// parseFloat requires the whole string to parse as a float and
// rejects NaN even though strconv would accept it. Inf is allowed:
// ZQUERY uses -inf as the "from the beginning" range bound.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, errNaN
	}
	return v, nil
}

// parseScore is parseFloat restricted to finite values: a stored
// member score must be finite, while a query bound need not be.
func parseScore(s string) (float64, error) {
	v, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, errInf
	}
	return v, nil
}
