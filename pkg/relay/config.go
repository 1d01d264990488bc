package relay

import (
	"errors"
	"time"

	"github.com/HugKitten/KRelay/pkg/protocol"
)

var ErrNoUpstream = errors.New("relay: upstream address is required")

// Config holds relay configuration
type Config struct {
	ListenAddr    string        // TCP address game clients connect to
	WebSocketAddr string        // HTTP address for WebSocket clients, empty to disable
	MetricsAddr   string        // HTTP address for /metrics and /health, empty to disable
	UpstreamAddr  string        // game server every session is relayed to
	DialTimeout   time.Duration // upstream dial timeout
	MaxFrameSize  uint32        // largest frame accepted from either side
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":2050",
		MetricsAddr:  ":9090",
		UpstreamAddr: "127.0.0.1:2051",
		DialTimeout:  10 * time.Second,
		MaxFrameSize: protocol.DefaultMaxFrameSize,
	}
}

func (c Config) validate() error {
	if c.UpstreamAddr == "" {
		return ErrNoUpstream
	}
	return nil
}
