package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsupportedField = errors.New("unsupported field type")

// Field describes one wire field of a variant. Ref points at the struct field
// that backs it; the pointer type decides the wire encoding.
type Field struct {
	Name string
	Ref  any
}

// DecodeFields reads fields in order
func DecodeFields(r *Reader, fields []Field) error {
	for _, f := range fields {
		if err := decodeField(r, f); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func decodeField(r *Reader, f Field) (err error) {
	switch ref := f.Ref.(type) {
	case *uint8:
		*ref, err = ReadUint8(r)
	case *bool:
		*ref, err = ReadBool(r)
	case *int16:
		*ref, err = ReadInt16(r)
	case *uint16:
		*ref, err = ReadUint16(r)
	case *int32:
		*ref, err = ReadInt32(r)
	case *uint32:
		*ref, err = ReadUint32(r)
	case *float32:
		*ref, err = ReadFloat32(r)
	case *string:
		*ref, err = ReadString(r)
	case *[]byte:
		*ref, err = ReadBytes(r)
	case *[]bool:
		*ref, err = ReadBools(r)
	case *[]int32:
		*ref, err = ReadInt32s(r)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupportedField, f.Ref)
	}
	return err
}

// EncodeFields writes fields in order
func EncodeFields(w *Writer, fields []Field) error {
	for _, f := range fields {
		if err := encodeField(w, f); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func encodeField(w *Writer, f Field) error {
	switch ref := f.Ref.(type) {
	case *uint8:
		return WriteUint8(w, *ref)
	case *bool:
		return WriteBool(w, *ref)
	case *int16:
		return WriteInt16(w, *ref)
	case *uint16:
		return WriteUint16(w, *ref)
	case *int32:
		return WriteInt32(w, *ref)
	case *uint32:
		return WriteUint32(w, *ref)
	case *float32:
		return WriteFloat32(w, *ref)
	case *string:
		return WriteString(w, *ref)
	case *[]byte:
		return WriteBytes(w, *ref)
	case *[]bool:
		return WriteBools(w, *ref)
	case *[]int32:
		return WriteInt32s(w, *ref)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedField, f.Ref)
	}
}

// KindOf names the field's value type for prompts, e.g. "Int32"
func KindOf(f Field) string {
	switch f.Ref.(type) {
	case *uint8:
		return "Byte"
	case *bool:
		return "Boolean"
	case *int16:
		return "Int16"
	case *uint16:
		return "UInt16"
	case *int32:
		return "Int32"
	case *uint32:
		return "UInt32"
	case *float32:
		return "Single"
	case *string:
		return "String"
	case *[]byte:
		return "Byte[]"
	case *[]bool:
		return "Boolean[]"
	case *[]int32:
		return "Int32[]"
	default:
		return fmt.Sprintf("%T", f.Ref)
	}
}

// FormatValue renders the field's current value for Describe
func FormatValue(f Field) string {
	switch ref := f.Ref.(type) {
	case *uint8:
		return strconv.FormatUint(uint64(*ref), 10)
	case *bool:
		return strconv.FormatBool(*ref)
	case *int16:
		return strconv.FormatInt(int64(*ref), 10)
	case *uint16:
		return strconv.FormatUint(uint64(*ref), 10)
	case *int32:
		return strconv.FormatInt(int64(*ref), 10)
	case *uint32:
		return strconv.FormatUint(uint64(*ref), 10)
	case *float32:
		return strconv.FormatFloat(float64(*ref), 'g', -1, 32)
	case *string:
		return *ref
	case *[]byte:
		return joinValues(*ref, func(b byte) string { return strconv.FormatUint(uint64(b), 10) })
	case *[]bool:
		return joinValues(*ref, strconv.FormatBool)
	case *[]int32:
		return joinValues(*ref, func(n int32) string { return strconv.FormatInt(int64(n), 10) })
	default:
		return fmt.Sprintf("%v", f.Ref)
	}
}

func joinValues[T any](values []T, format func(T) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = format(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseValue sets the field from user input. Strings are taken verbatim,
// scalars are parsed, slices are comma separated ("1, 2, 3"). The field is
// left untouched when the input does not parse.
func ParseValue(f Field, input string) error {
	switch ref := f.Ref.(type) {
	case *string:
		*ref = input
		return nil
	case *uint8:
		v, err := strconv.ParseUint(strings.TrimSpace(input), 10, 8)
		if err != nil {
			return err
		}
		*ref = uint8(v)
	case *bool:
		v, err := strconv.ParseBool(strings.TrimSpace(input))
		if err != nil {
			return err
		}
		*ref = v
	case *int16:
		v, err := strconv.ParseInt(strings.TrimSpace(input), 10, 16)
		if err != nil {
			return err
		}
		*ref = int16(v)
	case *uint16:
		v, err := strconv.ParseUint(strings.TrimSpace(input), 10, 16)
		if err != nil {
			return err
		}
		*ref = uint16(v)
	case *int32:
		v, err := strconv.ParseInt(strings.TrimSpace(input), 10, 32)
		if err != nil {
			return err
		}
		*ref = int32(v)
	case *uint32:
		v, err := strconv.ParseUint(strings.TrimSpace(input), 10, 32)
		if err != nil {
			return err
		}
		*ref = uint32(v)
	case *float32:
		v, err := strconv.ParseFloat(strings.TrimSpace(input), 32)
		if err != nil {
			return err
		}
		*ref = float32(v)
	case *[]byte:
		v, err := parseList(input, func(s string) (byte, error) {
			n, err := strconv.ParseUint(s, 10, 8)
			return byte(n), err
		})
		if err != nil {
			return err
		}
		*ref = v
	case *[]bool:
		v, err := parseList(input, strconv.ParseBool)
		if err != nil {
			return err
		}
		*ref = v
	case *[]int32:
		v, err := parseList(input, func(s string) (int32, error) {
			n, err := strconv.ParseInt(s, 10, 32)
			return int32(n), err
		})
		if err != nil {
			return err
		}
		*ref = v
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedField, f.Ref)
	}
	return nil
}

func parseList[T any](input string, parse func(string) (T, error)) ([]T, error) {
	out := []T{}
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
