package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize is the length prefix every frame starts with
	HeaderSize = 4

	// MinFrameSize is a header plus the message kind byte
	MinFrameSize = HeaderSize + 1

	// DefaultMaxFrameSize bounds frames read from a stream (1 MB)
	DefaultMaxFrameSize = 1024 * 1024
)

var (
	ErrFrameTooLarge      = errors.New("frame exceeds maximum size")
	ErrInvalidFrameLength = errors.New("invalid frame length")
)

// ReadFrame reads one raw frame from a stream.
// Format: [Length (4 bytes, includes itself)][Kind (1 byte)][Payload (N bytes)]
// The returned slice holds the whole frame, header included.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	if length > maxSize {
		return nil, ErrFrameTooLarge
	}
	if length < MinFrameSize {
		return nil, ErrInvalidFrameLength
	}

	buf := make([]byte, length)
	copy(buf, header[:])
	if _, err := io.ReadFull(r, buf[HeaderSize:]); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// EncodeFrame builds a complete frame for a message kind and payload
func EncodeFrame(id byte, payload []byte) []byte {
	buf := make([]byte, MinFrameSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(buf)))
	buf[HeaderSize] = id
	copy(buf[MinFrameSize:], payload)
	return buf
}

// WriteFrame writes a complete frame to the writer
func WriteFrame(w io.Writer, id byte, payload []byte) error {
	if uint64(MinFrameSize+len(payload)) > uint64(^uint32(0)) {
		return ErrFrameTooLarge
	}
	_, err := w.Write(EncodeFrame(id, payload))
	return err
}
