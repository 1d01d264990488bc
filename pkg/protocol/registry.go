package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

var (
	ErrUnknownVariant   = errors.New("no variant with this name")
	ErrDuplicateID      = errors.New("id already claimed by another variant")
	ErrDuplicateVariant = errors.New("variant already registered under another id")
	ErrReservedID       = errors.New("id 255 is reserved for the opaque variant")
	ErrInvalidID        = errors.New("id must be an unsigned byte")
	ErrRegistryFrozen   = errors.New("registry is sealed")
)

// ConfigurationError reports a bad line of the id table. It is fatal at startup.
type ConfigurationError struct {
	Line int // 1-based, 0 when not read from a table
	Name string
	ID   int
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("registry: line %d: %s:%d: %v", e.Line, e.Name, e.ID, e.Err)
	}
	return fmt.Sprintf("registry: %s:%d: %v", e.Name, e.ID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Constructor returns a zero instance of a variant
type Constructor func() Message

// Namespace is a named group of variants, e.g. all client to server messages
type Namespace struct {
	Name     string
	Variants map[string]Constructor
}

// TableEntry is one "VariantName:Id" line of the id table
type TableEntry struct {
	Line int
	Name string
	ID   byte
}

type variant struct {
	name string
	new  Constructor
}

// Registry maps message kind ids to variants and back. It is populated once
// at startup and read-only afterwards.
type Registry struct {
	namespaces []Namespace
	byID       [256]*variant
	ids        map[reflect.Type]byte
	sealed     bool
}

// NewRegistry creates an empty registry resolving names in the given
// namespaces, searched in order.
func NewRegistry(namespaces ...Namespace) *Registry {
	return &Registry{
		namespaces: namespaces,
		ids:        make(map[reflect.Type]byte),
	}
}

// Build parses an id table and registers every entry, then seals the registry
func Build(table io.Reader, namespaces ...Namespace) (*Registry, error) {
	entries, err := ParseTable(table)
	if err != nil {
		return nil, err
	}

	r := NewRegistry(namespaces...)
	for _, e := range entries {
		if err := r.Register(e.Name, e.ID); err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.Line = e.Line
			}
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// ParseTable reads "VariantName:Id" lines. Blank lines, comments starting
// with '#' and lines without a separator are skipped.
func ParseTable(table io.Reader) ([]TableEntry, error) {
	var entries []TableEntry
	scanner := bufio.NewScanner(table)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, rawID, ok := strings.Cut(text, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		rawID = strings.TrimSpace(rawID)

		id, err := strconv.ParseUint(rawID, 10, 8)
		if err != nil {
			return nil, &ConfigurationError{Line: line, Name: name, ID: -1, Err: fmt.Errorf("%w: %q", ErrInvalidID, rawID)}
		}
		entries = append(entries, TableEntry{Line: line, Name: name, ID: byte(id)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("registry: read table: %w", err)
	}
	return entries, nil
}

// Register binds a variant name to an id
func (r *Registry) Register(name string, id byte) error {
	if r.sealed {
		return &ConfigurationError{Name: name, ID: int(id), Err: ErrRegistryFrozen}
	}
	if id == OpaqueID {
		return &ConfigurationError{Name: name, ID: int(id), Err: ErrReservedID}
	}

	ctor, ok := r.resolve(name)
	if !ok {
		return &ConfigurationError{Name: name, ID: int(id), Err: ErrUnknownVariant}
	}
	if existing := r.byID[id]; existing != nil {
		return &ConfigurationError{Name: name, ID: int(id), Err: fmt.Errorf("%w (%s)", ErrDuplicateID, existing.name)}
	}

	t := reflect.TypeOf(ctor())
	if prev, dup := r.ids[t]; dup {
		return &ConfigurationError{Name: name, ID: int(id), Err: fmt.Errorf("%w (%d)", ErrDuplicateVariant, prev)}
	}

	r.byID[id] = &variant{name: name, new: ctor}
	r.ids[t] = id
	return nil
}

func (r *Registry) resolve(name string) (Constructor, bool) {
	for _, ns := range r.namespaces {
		if ctor, ok := ns.Variants[name]; ok && ctor != nil {
			return ctor, true
		}
	}
	return nil, false
}

// Seal makes the registry read-only
func (r *Registry) Seal() {
	r.sealed = true
}

// IDOf returns the configured id of the message's concrete type. A bare
// Opaque reports the id it was decoded under.
func (r *Registry) IDOf(msg Message) (byte, bool) {
	if id, ok := r.ids[reflect.TypeOf(msg)]; ok {
		return id, true
	}
	if o, ok := msg.(*Opaque); ok {
		return o.ID, true
	}
	return 0, false
}

// VariantFor returns the constructor for id, or the opaque constructor when
// no variant is configured for it.
func (r *Registry) VariantFor(id byte) Constructor {
	if v := r.byID[id]; v != nil {
		return v.new
	}
	return func() Message {
		return &Opaque{ID: id}
	}
}

// NameOf returns the configured variant name for id, or "Unknown"
func (r *Registry) NameOf(id byte) string {
	if v := r.byID[id]; v != nil {
		return v.name
	}
	return "Unknown"
}

// Lookup finds a configured variant by name
func (r *Registry) Lookup(name string) (Constructor, byte, bool) {
	for id, v := range r.byID {
		if v != nil && v.name == name {
			return v.new, byte(id), true
		}
	}
	return nil, 0, false
}

// Entries lists every configured variant ordered by id
func (r *Registry) Entries() []TableEntry {
	var out []TableEntry
	for id, v := range r.byID {
		if v != nil {
			out = append(out, TableEntry{Name: v.name, ID: byte(id)})
		}
	}
	return out
}
