package protocol

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadUint8(t *testing.T) {
	tests := []struct {
		name  string
		value uint8
	}{
		{"zero", 0},
		{"one", 1},
		{"max", 255},
		{"mid", 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			err := WriteUint8(buf, tt.value)
			require.NoError(t, err)

			result, err := ReadUint8(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestWriteReadInt16(t *testing.T) {
	tests := []struct {
		name  string
		value int16
	}{
		{"zero", 0},
		{"negative", -1},
		{"min", math.MinInt16},
		{"max", math.MaxInt16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, WriteInt16(buf, tt.value))
			assert.Equal(t, 2, buf.Len())

			result, err := ReadInt16(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestWriteReadInt32(t *testing.T) {
	tests := []struct {
		name  string
		value int32
	}{
		{"zero", 0},
		{"one", 1},
		{"negative", -42},
		{"min", math.MinInt32},
		{"max", math.MaxInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, WriteInt32(buf, tt.value))

			result, err := ReadInt32(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestInt32IsBigEndian(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteInt32(buf, 0x01020304))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf.Bytes())
}

func TestWriteReadFloat32(t *testing.T) {
	for _, v := range []float32{0, 1.5, -273.15, math.MaxFloat32, math.SmallestNonzeroFloat32} {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteFloat32(buf, v))

		result, err := ReadFloat32(buf)
		require.NoError(t, err)
		assert.Equal(t, v, result)
	}
}

func TestWriteReadBool(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteBool(buf, true))
	require.NoError(t, WriteBool(buf, false))
	assert.Equal(t, []byte{0x01, 0x00}, buf.Bytes())

	v, err := ReadBool(buf)
	require.NoError(t, err)
	assert.True(t, v)
	v, err = ReadBool(buf)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestReadBoolNonZeroIsTrue(t *testing.T) {
	v, err := ReadBool(bytes.NewReader([]byte{0x7F}))
	require.NoError(t, err)
	assert.True(t, v)
}

func TestWriteReadString(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"ascii", "hello"},
		{"unicode", "héllo wörld ✓"},
		{"max length", strings.Repeat("a", math.MaxUint16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			require.NoError(t, WriteString(buf, tt.value))
			assert.Equal(t, 2+len(tt.value), buf.Len())

			result, err := ReadString(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.value, result)
		})
	}
}

func TestWriteStringTooLong(t *testing.T) {
	buf := new(bytes.Buffer)
	err := WriteString(buf, strings.Repeat("a", math.MaxUint16+1))
	assert.Equal(t, ErrStringTooLong, err)
	assert.Zero(t, buf.Len())
}

func TestReadStringTruncated(t *testing.T) {
	// Claims 5 bytes, has 2
	_, err := ReadString(bytes.NewReader([]byte{0x00, 0x05, 'h', 'i'}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteReadSlices(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteBytes(buf, []byte{1, 2, 3}))
	require.NoError(t, WriteBools(buf, []bool{true, false}))
	require.NoError(t, WriteInt32s(buf, []int32{-1, 7}))

	b, err := ReadBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	bools, err := ReadBools(buf)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, bools)

	ints, err := ReadInt32s(buf)
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, 7}, ints)

	assert.Zero(t, buf.Len())
}

func TestReadFromEmptyReader(t *testing.T) {
	r := NewReader(nil)

	_, err := ReadUint8(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadUint32(r)
	assert.Error(t, err)

	_, err = ReadString(r)
	assert.Error(t, err)
}

func TestReaderCursor(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD})

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), b)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 1, r.Offset())

	rest := r.Rest()
	assert.Equal(t, []byte{0xBB, 0xCC, 0xDD}, rest)
	assert.Zero(t, r.Len())
	assert.Equal(t, []byte{}, r.Rest())

	n, err := r.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)
}

func TestWriterAccumulates(t *testing.T) {
	w := NewWriter()
	require.NoError(t, WriteUint16(w, 0x0102))
	require.NoError(t, WriteString(w, "ok"))
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0x02, 'o', 'k'}, w.Bytes())
	assert.Equal(t, 6, w.Len())
}
