package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortFrame          = errors.New("frame shorter than header and kind byte")
	ErrUnregisteredVariant = errors.New("variant has no configured id")
)

// DecodeError reports a frame that could not be turned into a message. It
// only concerns that frame; the caller drops it and keeps going.
type DecodeError struct {
	ID   byte
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if errors.Is(e.Err, ErrShortFrame) {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s (0x%02X): %v", e.Name, e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeFrame turns a raw frame into its variant. The 4 byte header is
// skipped without validation; the stream reader already checked it.
func (r *Registry) DecodeFrame(buf []byte) (Message, error) {
	if len(buf) < MinFrameSize {
		return nil, &DecodeError{Err: ErrShortFrame}
	}

	id := buf[HeaderSize]
	msg := r.VariantFor(id)()
	if err := msg.Decode(NewReader(buf[MinFrameSize:])); err != nil {
		return nil, &DecodeError{ID: id, Name: r.NameOf(id), Err: err}
	}
	return msg, nil
}

// EncodeFrame serializes a message into a complete frame
func (r *Registry) EncodeFrame(msg Message) ([]byte, error) {
	id, ok := r.IDOf(msg)
	if !ok {
		return nil, fmt.Errorf("encode %s: %w", TypeName(msg), ErrUnregisteredVariant)
	}

	w := NewWriter()
	if err := msg.Encode(w); err != nil {
		return nil, fmt.Errorf("encode %s: %w", TypeName(msg), err)
	}
	return EncodeFrame(id, w.Bytes()), nil
}

// Encode serializes a message body without the frame header
func Encode(msg Message) ([]byte, error) {
	w := NewWriter()
	if err := msg.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
