// Package plugins contains the hook sets shipped with the relay.
package plugins

import (
	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// Plugin installs its hooks into a table
type Plugin interface {
	Name() string
	Install(t *hook.Table)
}

// Config selects and configures the built-in plugins
type Config struct {
	BlockedWords []string // TextFilter, disabled when empty
	Trace        []string // variant names to trace, "*" for all
	AutoPong     bool
}

// FromConfig builds the plugins enabled by cfg
func FromConfig(cfg Config, registry *protocol.Registry) ([]Plugin, error) {
	var out []Plugin
	if len(cfg.Trace) > 0 {
		trace, err := NewTrace(registry, cfg.Trace)
		if err != nil {
			return nil, err
		}
		out = append(out, trace)
	}
	if len(cfg.BlockedWords) > 0 {
		out = append(out, NewTextFilter(cfg.BlockedWords))
	}
	if cfg.AutoPong {
		out = append(out, NewAutoPong())
	}
	return out, nil
}

// InstallAll installs every plugin in order
func InstallAll(t *hook.Table, plugins []Plugin) {
	for _, p := range plugins {
		p.Install(t)
		log.Info().Str("plugin", p.Name()).Msg("plugin installed")
	}
}
