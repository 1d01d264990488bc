package protocol

import (
	"reflect"
	"strings"
)

// OpaqueID is reserved for the opaque variant and is never configurable
const OpaqueID = 0xFF

// Message is implemented by every protocol variant.
//
// Decode consumes the frame body that follows the kind byte, Encode writes
// it back. Fields exposes the variant's schema in wire order and is used for
// diagnostics and interactive construction. The forward flag is consulted by
// the transport once every hook has seen the message.
type Message interface {
	Decode(r *Reader) error
	Encode(w *Writer) error
	Fields() []Field
	Forward() bool
	SetForward(forward bool)
}

// Base carries the forward flag. The zero value forwards.
type Base struct {
	blocked bool
}

// Forward reports whether the message should continue to its destination
func (b *Base) Forward() bool {
	return !b.blocked
}

// SetForward sets whether the message should continue to its destination
func (b *Base) SetForward(forward bool) {
	b.blocked = !forward
}

// Opaque is the fallback variant for kinds without a known shape. Concrete
// variants that do not need typed fields embed it to keep the raw payload.
type Opaque struct {
	Base

	// ID is the kind byte the message was decoded under. Only the bare
	// opaque variant needs it to be re-encoded.
	ID      byte
	Payload []byte
}

// NewOpaque is the constructor for unregistered kinds
func NewOpaque() Message {
	return &Opaque{ID: OpaqueID}
}

// Decode consumes every remaining byte of the frame
func (m *Opaque) Decode(r *Reader) error {
	m.Payload = r.Rest()
	return nil
}

// Encode writes the payload verbatim
func (m *Opaque) Encode(w *Writer) error {
	if len(m.Payload) == 0 {
		return nil
	}
	_, err := w.Write(m.Payload)
	return err
}

func (m *Opaque) Fields() []Field {
	return []Field{{Name: "Payload", Ref: &m.Payload}}
}

// TypeName returns the bare type name of a variant, e.g. "Ping" for *client.Ping
func TypeName(msg Message) string {
	t := reflect.TypeOf(msg)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

// Describe renders a message for logs: the type name followed by one
// "field => value" line per schema field.
func Describe(msg Message) string {
	var s strings.Builder
	s.WriteString(TypeName(msg))
	s.WriteString(":")
	if msg == nil {
		return s.String()
	}
	for _, f := range msg.Fields() {
		s.WriteString("\n\t")
		s.WriteString(f.Name)
		s.WriteString(" => ")
		s.WriteString(FormatValue(f))
	}
	return s.String()
}
