package hook

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chat struct {
	protocol.Opaque
}

type move struct {
	protocol.Opaque
}

type fakeConn struct {
	mu       sync.Mutex
	toClient []protocol.Message
	toServer []protocol.Message
}

func (c *fakeConn) ID() uint64           { return 7 }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2050} }

func (c *fakeConn) SendToClient(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toClient = append(c.toClient, msg)
	return nil
}

func (c *fakeConn) SendToServer(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toServer = append(c.toServer, msg)
	return nil
}

// recorder returns a handler appending name to order
func recorder(order *[]string, name string) Handler[*chat] {
	return func(Conn, *chat) error {
		*order = append(*order, name)
		return nil
	}
}

func TestDispatchOrder(t *testing.T) {
	tests := []struct {
		name  string
		subs  []Priority
		order []string
	}{
		{"normal appends", []Priority{Normal, Normal, Normal}, []string{"0", "1", "2"}},
		{"high prepends", []Priority{High, High, High}, []string{"2", "1", "0"}},
		{"normal normal high", []Priority{Normal, Normal, High}, []string{"2", "0", "1"}},
		{"high before normal", []Priority{Normal, High, Normal, High}, []string{"3", "1", "0", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable()
			var order []string
			for i, p := range tt.subs {
				Subscribe(table, p, recorder(&order, string(rune('0'+i))))
			}

			require.NoError(t, table.Dispatch(nil, &chat{}))
			assert.Equal(t, tt.order, order)
		})
	}
}

func TestDispatchCABScenario(t *testing.T) {
	table := NewTable()
	var order []string
	Hook(table, recorder(&order, "A"))
	Hook(table, recorder(&order, "B"))
	HookFirst(table, recorder(&order, "C"))

	require.NoError(t, table.Dispatch(nil, &chat{}))
	assert.Equal(t, []string{"C", "A", "B"}, order)
}

func TestDispatchExactType(t *testing.T) {
	table := NewTable()
	chats, moves := 0, 0
	Hook(table, func(Conn, *chat) error { chats++; return nil })
	Hook(table, func(Conn, *move) error { moves++; return nil })

	require.NoError(t, table.Dispatch(nil, &chat{}))
	require.NoError(t, table.Dispatch(nil, &chat{}))
	require.NoError(t, table.Dispatch(nil, &move{}))

	// The embedded opaque type is a different variant
	require.NoError(t, table.Dispatch(nil, &protocol.Opaque{}))

	assert.Equal(t, 2, chats)
	assert.Equal(t, 1, moves)
}

func TestDispatchNoHooks(t *testing.T) {
	table := NewTable()
	msg := &chat{}
	assert.NoError(t, table.Dispatch(nil, msg))
	assert.NoError(t, table.Dispatch(nil, nil))
	assert.True(t, msg.Forward())
}

func TestDuplicateSubscriptionsFireTwice(t *testing.T) {
	table := NewTable()
	calls := 0
	fn := func(Conn, *chat) error { calls++; return nil }
	Hook(table, fn)
	Hook(table, fn)

	require.NoError(t, table.Dispatch(nil, &chat{}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, table.Len(&chat{}))
	assert.Equal(t, 0, table.Len(&move{}))
}

func TestForwardFalseSticks(t *testing.T) {
	table := NewTable()
	var seen []bool
	Hook(table, func(_ Conn, m *chat) error {
		m.SetForward(false)
		return nil
	})
	Hook(table, func(_ Conn, m *chat) error {
		seen = append(seen, m.Forward())
		return nil
	})

	msg := &chat{}
	require.NoError(t, table.Dispatch(nil, msg))
	assert.False(t, msg.Forward())
	assert.Equal(t, []bool{false}, seen)
}

func TestMutationsVisibleDownstream(t *testing.T) {
	table := NewTable()
	Hook(table, func(_ Conn, m *chat) error {
		m.Payload = append(m.Payload, 2)
		return nil
	})
	var got []byte
	Hook(table, func(_ Conn, m *chat) error {
		got = append([]byte(nil), m.Payload...)
		return nil
	})

	msg := &chat{Opaque: protocol.Opaque{Payload: []byte{1}}}
	require.NoError(t, table.Dispatch(nil, msg))
	assert.Equal(t, []byte{1, 2}, got)
	assert.Equal(t, []byte{1, 2}, msg.Payload)
}

func TestFailingHookIsIsolated(t *testing.T) {
	table := NewTable()
	boom := errors.New("boom")
	var order []string

	Hook(table, recorder(&order, "first"))
	Hook(table, func(Conn, *chat) error { return boom })
	Hook(table, func(Conn, *chat) error { panic("kaboom") })
	Hook(table, recorder(&order, "last"))

	err := table.Dispatch(&fakeConn{}, &chat{})
	require.Error(t, err)
	assert.Equal(t, []string{"first", "last"}, order)

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrHandlerPanic)

	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "chat", herr.Variant)
	assert.Equal(t, 1, herr.Position)
}

func TestSubscribeVariant(t *testing.T) {
	table := NewTable()
	var order []string
	Hook(table, recorder(&order, "typed"))
	table.SubscribeVariant(func() protocol.Message { return &chat{} }, High, func(_ Conn, m protocol.Message) error {
		order = append(order, protocol.TypeName(m))
		return nil
	})

	require.NoError(t, table.Dispatch(nil, &chat{}))
	assert.Equal(t, []string{"chat", "typed"}, order)
}

func TestHooksInjectThroughConn(t *testing.T) {
	table := NewTable()
	Hook(table, func(c Conn, m *chat) error {
		m.SetForward(false)
		return c.SendToClient(&move{})
	})

	conn := &fakeConn{}
	require.NoError(t, table.Dispatch(conn, &chat{}))
	require.Len(t, conn.toClient, 1)
	assert.IsType(t, &move{}, conn.toClient[0])
	assert.Empty(t, conn.toServer)
}

func TestSubscribeDuringDispatch(t *testing.T) {
	table := NewTable()
	calls := 0
	Hook(table, func(Conn, *chat) error {
		calls++
		// Must not deadlock; takes effect on the next dispatch
		Hook(table, func(Conn, *chat) error { calls++; return nil })
		return nil
	})

	require.NoError(t, table.Dispatch(nil, &chat{}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, table.Len(&chat{}))
}

func TestConcurrentDispatchAndSubscribe(t *testing.T) {
	table := NewTable()
	var mu sync.Mutex
	calls := 0
	count := func(Conn, *chat) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}
	Hook(table, count)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = table.Dispatch(nil, &chat{})
			}
		}()
		go func() {
			defer wg.Done()
			Hook(table, count)
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, table.Len(&chat{}))
	assert.GreaterOrEqual(t, calls, 800)
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "normal", Normal.String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "Priority(5)", Priority(5).String())
}
