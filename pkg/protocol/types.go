package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrStringTooLong = errors.New("string exceeds maximum length (65535 bytes)")
	ErrSliceTooLong  = errors.New("slice exceeds maximum length (65535 elements)")
)

// WriteUint8 writes a single byte
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint8 reads a single byte
func ReadUint8(r io.Reader) (uint8, error) {
	if br, ok := r.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		return b, err
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteBool writes a boolean as a single byte (0x00 or 0x01)
func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteUint8(w, 0x01)
	}
	return WriteUint8(w, 0x00)
}

// ReadBool reads a boolean from a single byte
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, err
	}
	return b != 0x00, nil
}

// WriteUint16 writes a 16-bit unsigned integer in big-endian
func WriteUint16(w io.Writer, v uint16) error {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint16 reads a 16-bit unsigned integer in big-endian
func ReadUint16(r io.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// WriteInt16 writes a 16-bit signed integer in big-endian
func WriteInt16(w io.Writer, v int16) error {
	return WriteUint16(w, uint16(v))
}

// ReadInt16 reads a 16-bit signed integer in big-endian
func ReadInt16(r io.Reader) (int16, error) {
	v, err := ReadUint16(r)
	return int16(v), err
}

// WriteUint32 writes a 32-bit unsigned integer in big-endian
func WriteUint32(w io.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}

// ReadUint32 reads a 32-bit unsigned integer in big-endian
func ReadUint32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// WriteInt32 writes a 32-bit signed integer in big-endian
func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

// ReadInt32 reads a 32-bit signed integer in big-endian
func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// WriteFloat32 writes an IEEE 754 single precision float in big-endian
func WriteFloat32(w io.Writer, v float32) error {
	return WriteUint32(w, math.Float32bits(v))
}

// ReadFloat32 reads an IEEE 754 single precision float in big-endian
func ReadFloat32(r io.Reader) (float32, error) {
	v, err := ReadUint32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// WriteString writes a length-prefixed UTF-8 string
// Format: [Length (uint16)][Data (N bytes UTF-8)]
func WriteString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}

	if err := WriteUint16(w, uint16(len(s))); err != nil {
		return err
	}

	if len(s) > 0 {
		_, err := io.WriteString(w, s)
		return err
	}
	return nil
}

// ReadString reads a length-prefixed UTF-8 string
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteBytes writes a length-prefixed byte slice
// Format: [Length (uint16)][Data (N bytes)]
func WriteBytes(w io.Writer, b []byte) error {
	if len(b) > math.MaxUint16 {
		return ErrSliceTooLong
	}

	if err := WriteUint16(w, uint16(len(b))); err != nil {
		return err
	}

	if len(b) > 0 {
		_, err := w.Write(b)
		return err
	}
	return nil
}

// ReadBytes reads a length-prefixed byte slice
func ReadBytes(r io.Reader) ([]byte, error) {
	length, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}

	if length == 0 {
		return []byte{}, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteBools writes a count-prefixed slice of booleans
func WriteBools(w io.Writer, v []bool) error {
	if len(v) > math.MaxUint16 {
		return ErrSliceTooLong
	}
	if err := WriteUint16(w, uint16(len(v))); err != nil {
		return err
	}
	for _, b := range v {
		if err := WriteBool(w, b); err != nil {
			return err
		}
	}
	return nil
}

// ReadBools reads a count-prefixed slice of booleans
func ReadBools(r io.Reader) ([]bool, error) {
	count, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	out := make([]bool, count)
	for i := range out {
		if out[i], err = ReadBool(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteInt32s writes a count-prefixed slice of 32-bit signed integers
func WriteInt32s(w io.Writer, v []int32) error {
	if len(v) > math.MaxUint16 {
		return ErrSliceTooLong
	}
	if err := WriteUint16(w, uint16(len(v))); err != nil {
		return err
	}
	for _, n := range v {
		if err := WriteInt32(w, n); err != nil {
			return err
		}
	}
	return nil
}

// ReadInt32s reads a count-prefixed slice of 32-bit signed integers
func ReadInt32s(r io.Reader) ([]int32, error) {
	count, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	out := make([]int32, count)
	for i := range out {
		if out[i], err = ReadInt32(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
