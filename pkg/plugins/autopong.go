package plugins

import (
	"time"

	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/messages/client"
	"github.com/HugKitten/KRelay/pkg/messages/server"
)

// AutoPong answers server pings itself so a stalled client keeps its
// connection. The ping is not relayed.
type AutoPong struct {
	start time.Time
}

func NewAutoPong() *AutoPong {
	return &AutoPong{start: time.Now()}
}

func (p *AutoPong) Name() string { return "autopong" }

func (p *AutoPong) Install(t *hook.Table) {
	hook.Hook(t, p.onPing)
}

func (p *AutoPong) onPing(c hook.Conn, m *server.Ping) error {
	m.SetForward(false)
	return c.SendToServer(&client.Pong{
		Serial: m.Serial,
		Time:   int32(time.Since(p.start).Milliseconds()),
	})
}
