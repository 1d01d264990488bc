//go:build !linux

package relay

import "github.com/rs/zerolog/log"

// logListenBacklog logs the listen address
func logListenBacklog(addr string) {
	log.Info().Str("addr", addr).Msg("relay listening")
}

// monitorListenOverflows is a no-op outside Linux
func (s *Server) monitorListenOverflows() {
	s.wg.Done()
}
