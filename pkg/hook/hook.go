// Package hook dispatches decoded messages to the callbacks subscribed to
// their concrete variant.
package hook

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"

	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// ErrHandlerPanic wraps the value recovered from a panicking callback
var ErrHandlerPanic = errors.New("hook panicked")

// Conn is the connection a message arrived on. Hooks use it to inject
// messages in either direction.
type Conn interface {
	ID() uint64
	RemoteAddr() net.Addr
	SendToClient(msg protocol.Message) error
	SendToServer(msg protocol.Message) error
}

// Priority decides where a new callback is placed in its variant's list
type Priority int

const (
	// Normal callbacks run after every callback registered before them
	Normal Priority = iota
	// High callbacks run before everything registered so far
	High
)

func (p Priority) String() string {
	switch p {
	case Normal:
		return "normal"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Handler is a callback for one concrete variant. The message is shared with
// the other callbacks and the transport, so changes are visible downstream.
type Handler[T protocol.Message] func(conn Conn, msg T) error

// Func is an untyped callback
type Func func(conn Conn, msg protocol.Message) error

// HandlerError records a callback that failed or panicked
type HandlerError struct {
	Variant  string
	Position int
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("hook %s[%d]: %v", e.Variant, e.Position, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Table holds the ordered callbacks for each variant. Subscriptions publish
// a new slice, so a dispatch in flight keeps the list it started with.
type Table struct {
	mu    sync.RWMutex
	hooks map[reflect.Type][]Func
}

// NewTable creates an empty hook table
func NewTable() *Table {
	return &Table{
		hooks: make(map[reflect.Type][]Func),
	}
}

// Subscribe registers fn for variant T
func Subscribe[T protocol.Message](t *Table, p Priority, fn Handler[T]) {
	t.add(reflect.TypeOf((*T)(nil)).Elem(), p, func(conn Conn, msg protocol.Message) error {
		return fn(conn, msg.(T))
	})
}

// Hook registers fn for variant T at normal priority
func Hook[T protocol.Message](t *Table, fn Handler[T]) {
	Subscribe(t, Normal, fn)
}

// HookFirst registers fn for variant T at high priority
func HookFirst[T protocol.Message](t *Table, fn Handler[T]) {
	Subscribe(t, High, fn)
}

// SubscribeVariant registers fn for the variant built by ctor. It serves
// callers that only know a variant by name, through the registry.
func (t *Table) SubscribeVariant(ctor protocol.Constructor, p Priority, fn Func) {
	t.add(reflect.TypeOf(ctor()), p, fn)
}

func (t *Table) add(key reflect.Type, p Priority, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.hooks[key]
	next := make([]Func, 0, len(current)+1)
	if p == High {
		next = append(next, fn)
		next = append(next, current...)
	} else {
		next = append(next, current...)
		next = append(next, fn)
	}
	t.hooks[key] = next
}

// Len returns the number of callbacks subscribed to msg's variant
func (t *Table) Len(msg protocol.Message) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.hooks[reflect.TypeOf(msg)])
}

// Dispatch runs every callback subscribed to msg's concrete variant, in
// order. A failing callback is logged and skipped; the rest still run. The
// failures are returned joined for accounting and are never fatal.
func (t *Table) Dispatch(conn Conn, msg protocol.Message) error {
	if msg == nil {
		return nil
	}

	t.mu.RLock()
	hooks := t.hooks[reflect.TypeOf(msg)]
	t.mu.RUnlock()

	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for i, fn := range hooks {
		if err := call(fn, conn, msg); err != nil {
			herr := &HandlerError{Variant: protocol.TypeName(msg), Position: i, Err: err}
			event := log.Warn().Err(err).Str("variant", herr.Variant).Int("position", i)
			if conn != nil {
				event = event.Uint64("conn", conn.ID())
			}
			event.Msg("hook failed")
			errs = append(errs, herr)
		}
	}
	return errors.Join(errs...)
}

func call(fn Func, conn Conn, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return fn(conn, msg)
}
