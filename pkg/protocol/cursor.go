package protocol

import (
	"bytes"
	"io"
)

// Reader is a read cursor over a single in-memory frame body.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Rest consumes and returns a copy of every unread byte.
func (r *Reader) Rest() []byte {
	out := make([]byte, r.Len())
	copy(out, r.data[r.off:])
	r.off = len(r.data)
	return out
}

// Writer accumulates an encoded frame body.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// WriteString implements io.StringWriter.
func (w *Writer) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}
