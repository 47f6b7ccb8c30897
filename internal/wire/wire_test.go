package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFrame(args ...string) []byte {
	var body []byte
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(args)))
	body = append(body, n[:]...)
	for _, a := range args {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(a)))
		body = append(body, l[:]...)
		body = append(body, a...)
	}

	var frame []byte
	var flen [4]byte
	binary.LittleEndian.PutUint32(flen[:], uint32(len(body)))
	frame = append(frame, flen[:]...)
	frame = append(frame, body...)
	return frame
}

func TestTryReadFrameNeedsMoreData(t *testing.T) {
	frame := buildFrame("GET", "k")
	_, _, ok, err := TryReadFrame(frame[:2])
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = TryReadFrame(frame[:len(frame)-1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryReadFrameCompleteAndPipelined(t *testing.T) {
	frame := buildFrame("GET", "k")
	second := buildFrame("DEL", "x")
	buf := append(append([]byte{}, frame...), second...)

	body, n, ok, err := TryReadFrame(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(frame), n)

	args, err := ParseArgs(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "k"}, args)

	body2, n2, ok, err := TryReadFrame(buf[n:])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(second), n2)
	args2, err := ParseArgs(body2)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEL", "x"}, args2)
}

func TestTryReadFrameOversizeIsProtocolError(t *testing.T) {
	var huge [4]byte
	binary.LittleEndian.PutUint32(huge[:], MaxMsg+1)
	_, _, ok, err := TryReadFrame(huge[:])
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParseArgsTrailingGarbageRejected(t *testing.T) {
	frame := buildFrame("k")
	body := frame[4:]
	body = append(body, 'x', 'y') // trailing bytes past the declared args
	_, err := ParseArgs(body)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParseArgsTooManyArgsRejected(t *testing.T) {
	var body [4]byte
	binary.LittleEndian.PutUint32(body[:], MaxArgs+1)
	_, err := ParseArgs(body[:])
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestResponseRoundTripValues(t *testing.T) {
	var buf []byte
	buf, header := BeginResponse(buf)
	buf = AppendInt(buf, 42)
	buf = EndResponse(buf, header)

	size := binary.LittleEndian.Uint32(buf[:4])
	assert.Equal(t, uint32(len(buf)-4), size)
	assert.Equal(t, TagInt, buf[4])
	assert.Equal(t, int64(42), int64(binary.LittleEndian.Uint64(buf[5:13])))
}

func TestEndResponseTruncatesOversizeBody(t *testing.T) {
	var buf []byte
	buf, header := BeginResponse(buf)
	buf = AppendStr(buf, string(make([]byte, MaxMsg+10)))
	buf = EndResponse(buf, header)

	assert.Equal(t, TagErr, buf[4])
	code := binary.LittleEndian.Uint32(buf[5:9])
	assert.Equal(t, uint32(ErrTooBig), code)
}

func TestBeginEndArrPatchesCount(t *testing.T) {
	var buf []byte
	buf, ctx := BeginArr(buf)
	buf = AppendStr(buf, "a")
	buf = AppendDbl(buf, 1.5)
	EndArr(buf, ctx, 2)

	assert.Equal(t, TagArr, buf[0])
	n := binary.LittleEndian.Uint32(buf[1:5])
	assert.Equal(t, uint32(2), n)
}
