package plugins

import (
	"fmt"

	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Trace logs the decoded fields of chosen variants before any other hook
// sees them
type Trace struct {
	ctors  []protocol.Constructor
	names  []string
	Logger zerolog.Logger
}

// NewTrace resolves names against the registry. "*" selects every
// configured variant plus unknown kinds.
func NewTrace(registry *protocol.Registry, names []string) (*Trace, error) {
	t := &Trace{Logger: log.Logger}

	for _, name := range names {
		if name == "*" {
			for _, e := range registry.Entries() {
				ctor, _, _ := registry.Lookup(e.Name)
				t.add(e.Name, ctor)
			}
			t.add("Opaque", protocol.NewOpaque)
			continue
		}

		ctor, _, ok := registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("trace %q: %w", name, protocol.ErrUnknownVariant)
		}
		t.add(name, ctor)
	}
	return t, nil
}

func (t *Trace) add(name string, ctor protocol.Constructor) {
	for _, n := range t.names {
		if n == name {
			return
		}
	}
	t.names = append(t.names, name)
	t.ctors = append(t.ctors, ctor)
}

func (t *Trace) Name() string { return "trace" }

// Variants returns the traced variant names
func (t *Trace) Variants() []string {
	return t.names
}

func (t *Trace) Install(table *hook.Table) {
	for _, ctor := range t.ctors {
		table.SubscribeVariant(ctor, hook.High, t.trace)
	}
}

func (t *Trace) trace(c hook.Conn, msg protocol.Message) error {
	event := t.Logger.Debug()
	if c != nil {
		event = event.Uint64("session", c.ID())
	}
	event.Msg(protocol.Describe(msg))
	return nil
}
