// Command kvcli is a scripted TCP client for the key/value server: it
// encodes one request frame per invocation, reads back the single
// tagged response, and prints it. Useful for smoke-testing a running
// kvserver and for simple offset-query benchmarking.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/kvserver/internal/wire"
)

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}

func main() {
	addr := flag.String("addr", "127.0.0.1:1234", "kvserver address")
	timeout := flag.Duration("timeout", 5*time.Second, "dial and round-trip timeout")
	bench := flag.Int("bench-offset", 0, "if > 0, run N ZQUERY offset round-trips against -bench-zset instead of sending argv")
	benchZset := flag.String("bench-zset", "bench", "sorted-set key used by -bench-offset")
	flag.Parse()

	log := buildLogger().Named("kvcli")
	defer log.Sync()

	argv := flag.Args()
	if *bench <= 0 && len(argv) == 0 {
		fmt.Println("usage: kvcli [-addr host:port] CMD [ARGS...]")
		fmt.Println("       kvcli [-addr host:port] -bench-offset N -bench-zset KEY")
		os.Exit(1)
	}

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		log.Fatal("dial failed", zap.String("addr", *addr), zap.Error(err))
	}
	defer conn.Close()

	if *bench > 0 {
		runOffsetBench(log, conn, *benchZset, *bench, *timeout)
		return
	}

	conn.SetDeadline(time.Now().Add(*timeout))
	if err := sendRequest(conn, argv); err != nil {
		log.Fatal("request encode/send failed", zap.Error(err))
	}
	val, err := readResponse(conn)
	if err != nil {
		log.Fatal("response read/decode failed", zap.Error(err))
	}
	printValue(val, 0)
}

// encodeRequest builds one request frame: u32 body_len; u32 nargs;
// (u32 len; bytes)*nargs, per internal/wire's request framing.
func encodeRequest(argv []string) []byte {
	body := make([]byte, 0, 64)
	body = appendU32(body, uint32(len(argv)))
	for _, a := range argv {
		body = appendU32(body, uint32(len(a)))
		body = append(body, a...)
	}
	out := make([]byte, 0, len(body)+4)
	out = appendU32(out, uint32(len(body)))
	out = append(out, body...)
	return out
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func sendRequest(w io.Writer, argv []string) error {
	_, err := w.Write(encodeRequest(argv))
	return err
}

// value is a decoded response, deliberately mirroring wire.Tag's shape
// rather than reusing server-side types (the client has no reason to
// depend on internal/command).
type value struct {
	tag  wire.Tag
	i    int64
	f    float64
	s    string
	code uint32
	arr  []value
}

func readResponse(r io.Reader) (value, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return value{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return value{}, err
	}
	v, rest, err := decodeValue(body)
	if err != nil {
		return value{}, err
	}
	if len(rest) != 0 {
		return value{}, fmt.Errorf("kvcli: %d trailing bytes after response value", len(rest))
	}
	return v, nil
}

func decodeValue(b []byte) (value, []byte, error) {
	if len(b) < 1 {
		return value{}, nil, fmt.Errorf("kvcli: truncated response tag")
	}
	tag := b[0]
	b = b[1:]
	switch tag {
	case wire.TagNil:
		return value{tag: tag}, b, nil
	case wire.TagInt:
		if len(b) < 8 {
			return value{}, nil, fmt.Errorf("kvcli: truncated int")
		}
		i := int64(binary.LittleEndian.Uint64(b[:8]))
		return value{tag: tag, i: i}, b[8:], nil
	case wire.TagDbl:
		if len(b) < 8 {
			return value{}, nil, fmt.Errorf("kvcli: truncated double")
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))
		return value{tag: tag, f: f}, b[8:], nil
	case wire.TagStr:
		s, rest, err := decodeLenStr(b)
		if err != nil {
			return value{}, nil, err
		}
		return value{tag: tag, s: s}, rest, nil
	case wire.TagErr:
		if len(b) < 4 {
			return value{}, nil, fmt.Errorf("kvcli: truncated error code")
		}
		code := binary.LittleEndian.Uint32(b[:4])
		msg, rest, err := decodeLenStr(b[4:])
		if err != nil {
			return value{}, nil, err
		}
		return value{tag: tag, code: code, s: msg}, rest, nil
	case wire.TagArr:
		if len(b) < 4 {
			return value{}, nil, fmt.Errorf("kvcli: truncated array count")
		}
		n := binary.LittleEndian.Uint32(b[:4])
		rest := b[4:]
		elems := make([]value, 0, n)
		for i := uint32(0); i < n; i++ {
			var v value
			var err error
			v, rest, err = decodeValue(rest)
			if err != nil {
				return value{}, nil, err
			}
			elems = append(elems, v)
		}
		return value{tag: tag, arr: elems}, rest, nil
	default:
		return value{}, nil, fmt.Errorf("kvcli: unknown response tag %d", tag)
	}
}

func decodeLenStr(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("kvcli: truncated string length")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return "", nil, fmt.Errorf("kvcli: truncated string body")
	}
	return string(b[:n]), b[n:], nil
}

func printValue(v value, indent int) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}
	switch v.tag {
	case wire.TagNil:
		fmt.Println(pad + "(nil)")
	case wire.TagInt:
		fmt.Printf("%s(integer) %d\n", pad, v.i)
	case wire.TagDbl:
		fmt.Printf("%s(double) %g\n", pad, v.f)
	case wire.TagStr:
		fmt.Printf("%s%q\n", pad, v.s)
	case wire.TagErr:
		fmt.Printf("%s(error %d) %s\n", pad, v.code, v.s)
	case wire.TagArr:
		fmt.Printf("%s(array, %d elements)\n", pad, len(v.arr))
		for _, e := range v.arr {
			printValue(e, indent+1)
		}
	}
}

// runOffsetBench issues n ZQUERY round-trips at an increasing offset
// into key, for eyeballing that large-offset range queries stay fast
// over the wire, not just in a unit test.
func runOffsetBench(log *zap.Logger, conn net.Conn, key string, n int, timeout time.Duration) {
	start := time.Now()
	for i := 0; i < n; i++ {
		offset := fmt.Sprintf("%d", i)
		conn.SetDeadline(time.Now().Add(timeout))
		if err := sendRequest(conn, []string{"ZQUERY", key, "-inf", "", offset, "1"}); err != nil {
			log.Fatal("bench request failed", zap.Int("iter", i), zap.Error(err))
		}
		if _, err := readResponse(conn); err != nil {
			log.Fatal("bench response failed", zap.Int("iter", i), zap.Error(err))
		}
	}
	elapsed := time.Since(start)
	log.Info("offset bench complete",
		zap.Int("iterations", n),
		zap.Duration("total", elapsed),
		zap.Duration("per_op", elapsed/time.Duration(n)),
	)
}
