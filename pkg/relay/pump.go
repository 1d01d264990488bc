package relay

import (
	"fmt"
	"time"

	"github.com/HugKitten/KRelay/pkg/capture"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// pump relays frames travelling in dir until the source connection fails
func (s *Server) pump(sess *Session, dir Direction) error {
	src := sess.source(dir)
	for {
		frame, err := protocol.ReadFrame(src, s.config.MaxFrameSize)
		if err != nil {
			return fmt.Errorf("read %s: %w", dir, err)
		}
		if err := s.relayFrame(sess, dir, frame); err != nil {
			return err
		}
	}
}

// relayFrame decodes one frame, runs its hooks, records it and forwards it
// unless a hook blocked it. Only a failed write to the peer is returned.
func (s *Server) relayFrame(sess *Session, dir Direction, frame []byte) error {
	msg, err := s.registry.DecodeFrame(frame)
	if err != nil {
		s.metrics.RecordDecodeError(dir)
		log.Warn().Err(err).Uint64("session", sess.ID()).Stringer("direction", dir).Int("size", len(frame)).Msg("dropping undecodable frame")
		return nil
	}

	variant := protocol.TypeName(msg)
	s.metrics.RecordFrameReceived(dir, variant)

	start := time.Now()
	if err := s.hooks.Dispatch(sess, msg); err != nil {
		s.metrics.RecordHandlerErrors(variant, err)
	}
	s.metrics.RecordDispatchDuration(dir, time.Since(start))

	forward := msg.Forward()
	if s.recorder != nil {
		rec := capture.Record{
			SessionID: sess.ID(),
			Direction: dir.String(),
			KindID:    frame[protocol.HeaderSize],
			Variant:   variant,
			Payload:   frame[protocol.MinFrameSize:],
			Forwarded: forward,
		}
		if err := s.recorder.Record(rec); err != nil {
			log.Debug().Err(err).Uint64("session", sess.ID()).Msg("capture failed")
		}
	}

	if !forward {
		s.metrics.RecordFrameBlocked(dir, variant)
		log.Debug().Uint64("session", sess.ID()).Stringer("direction", dir).Str("variant", variant).Msg("frame blocked")
		return nil
	}

	out, err := s.registry.EncodeFrame(msg)
	if err != nil {
		// Hooks can only make a message unencodable by corrupting it
		log.Error().Err(err).Uint64("session", sess.ID()).Str("variant", variant).Msg("dropping unencodable frame")
		return nil
	}
	if err := sess.peer(dir).writeFrame(out); err != nil {
		return fmt.Errorf("write %s: %w", variant, err)
	}
	s.metrics.RecordFrameForwarded(dir, variant)
	return nil
}
