package plugins

import (
	"strings"
	"sync/atomic"

	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/messages/client"
	"github.com/HugKitten/KRelay/pkg/messages/server"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// TextFilter blocks chat containing any of its words, case-insensitively,
// in both directions
type TextFilter struct {
	words   []string
	blocked atomic.Uint64
}

func NewTextFilter(words []string) *TextFilter {
	f := &TextFilter{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			f.words = append(f.words, w)
		}
	}
	return f
}

func (f *TextFilter) Name() string { return "textfilter" }

func (f *TextFilter) Install(t *hook.Table) {
	hook.Hook(t, func(c hook.Conn, m *client.PlayerText) error {
		f.check(c, m, m.Text)
		return nil
	})
	hook.Hook(t, func(c hook.Conn, m *server.Text) error {
		f.check(c, m, m.Text)
		return nil
	})
}

// Blocked returns how many messages the filter stopped
func (f *TextFilter) Blocked() uint64 {
	return f.blocked.Load()
}

func (f *TextFilter) check(c hook.Conn, msg protocol.Message, text string) {
	word, ok := f.match(text)
	if !ok {
		return
	}
	msg.SetForward(false)
	f.blocked.Add(1)

	event := log.Debug().Str("word", word)
	if c != nil {
		event = event.Uint64("session", c.ID())
	}
	event.Msg("blocked chat")
}

func (f *TextFilter) match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range f.words {
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}
