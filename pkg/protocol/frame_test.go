package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameLayout(t *testing.T) {
	tests := []struct {
		name    string
		id      byte
		payload []byte
		want    []byte
	}{
		{
			name:    "empty payload",
			id:      0xFF,
			payload: nil,
			want:    []byte{0x00, 0x00, 0x00, 0x05, 0xFF},
		},
		{
			name:    "with payload",
			id:      0x01,
			payload: []byte{0xAA, 0xBB},
			want:    []byte{0x00, 0x00, 0x00, 0x07, 0x01, 0xAA, 0xBB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeFrame(tt.id, tt.payload))

			buf := new(bytes.Buffer)
			require.NoError(t, WriteFrame(buf, tt.id, tt.payload))
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestReadFrameReturnsWholeFrame(t *testing.T) {
	stream := new(bytes.Buffer)
	require.NoError(t, WriteFrame(stream, 0x01, []byte("first")))
	require.NoError(t, WriteFrame(stream, 0x02, nil))

	first, err := ReadFrame(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, EncodeFrame(0x01, []byte("first")), first)

	second, err := ReadFrame(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x05, 0x02}, second)

	_, err = ReadFrame(stream, 0)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		max     uint32
		wantErr error
	}{
		{
			name:    "length below minimum",
			data:    []byte{0x00, 0x00, 0x00, 0x04, 0x01},
			wantErr: ErrInvalidFrameLength,
		},
		{
			name:    "length zero",
			data:    []byte{0x00, 0x00, 0x00, 0x00},
			wantErr: ErrInvalidFrameLength,
		},
		{
			name:    "exceeds max",
			data:    []byte{0x00, 0x00, 0x01, 0x00, 0x01},
			max:     128,
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "exceeds default max",
			data:    []byte{0x7F, 0xFF, 0xFF, 0xFF, 0x01},
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "truncated body",
			data:    []byte{0x00, 0x00, 0x00, 0x08, 0x01, 0xAA},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "truncated header",
			data:    []byte{0x00, 0x00},
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data), tt.max)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
