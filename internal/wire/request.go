package wire

import (
	"encoding/binary"
	"errors"
)

// ErrProtocol is returned for malformed framing or argument encoding;
// the caller must close the connection (no response is sent).
var ErrProtocol = errors.New("wire: protocol error")

// TryReadFrame attempts to extract one complete length-prefixed frame
// from the front of buf. If there isn't enough data yet, it returns
// ok=false with no error; the caller should wait for more bytes. If
// the declared length exceeds MaxMsg, it returns ErrProtocol and the
// caller should close the connection.
func TryReadFrame(buf []byte) (body []byte, consumed int, ok bool, err error) {
	if len(buf) < 4 {
		return nil, 0, false, nil
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	if n > MaxMsg {
		return nil, 0, false, ErrProtocol
	}
	total := 4 + int(n)
	if len(buf) < total {
		return nil, 0, false, nil
	}
	return buf[4:total], total, true, nil
}

// ParseArgs decodes a frame body into its argument list.
//
// +------+-----+------+-----+------+-----+-----+------+
// | nstr | len | str1 | len | str2 | ... | len | strn |
// +------+-----+------+-----+------+-----+-----+------+
func ParseArgs(body []byte) ([]string, error) {
	if len(body) < 4 {
		return nil, ErrProtocol
	}
	nstr := binary.LittleEndian.Uint32(body[:4])
	if nstr > MaxArgs {
		return nil, ErrProtocol
	}
	cur := body[4:]

	out := make([]string, 0, nstr)
	for uint32(len(out)) < nstr {
		if len(cur) < 4 {
			return nil, ErrProtocol
		}
		l := binary.LittleEndian.Uint32(cur[:4])
		cur = cur[4:]
		if uint64(l) > uint64(len(cur)) {
			return nil, ErrProtocol
		}
		out = append(out, string(cur[:l]))
		cur = cur[l:]
	}
	if len(cur) != 0 {
		return nil, ErrProtocol // trailing garbage
	}
	return out, nil
}
