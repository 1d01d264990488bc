// Package relay sits between game clients and a game server, decoding every
// frame in both directions and running it through the hook table before
// passing it on.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/HugKitten/KRelay/pkg/capture"
	"github.com/HugKitten/KRelay/pkg/hook"
	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// Recorder receives every frame after its hooks ran
type Recorder interface {
	Record(rec capture.Record) error
}

// Option configures a Server
type Option func(*Server)

// WithMetrics makes the server report to m instead of a private registry
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRecorder offers every dispatched frame to r
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// Server accepts game clients and relays each one to the upstream server
type Server struct {
	config   Config
	registry *protocol.Registry
	hooks    *hook.Table
	sessions *SessionManager
	metrics  *Metrics
	recorder Recorder

	listener    net.Listener
	wsServer    *http.Server
	wsAddr      net.Addr
	httpServer  *http.Server
	metricsAddr net.Addr

	startTime time.Time
	shutdown  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewServer creates a relay. The registry must be sealed; hooks may still be
// added to the table after the server starts.
func NewServer(config Config, registry *protocol.Registry, hooks *hook.Table, opts ...Option) (*Server, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, errors.New("relay: registry is required")
	}
	if hooks == nil {
		hooks = hook.NewTable()
	}
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultConfig().DialTimeout
	}

	s := &Server{
		config:   config,
		registry: registry,
		hooks:    hooks,
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.sessions = NewSessionManager(registry, s.metrics)
	return s, nil
}

// Start opens the listeners and begins accepting clients
func (s *Server) Start() error {
	lc := net.ListenConfig{Control: controlSocket}
	listener, err := lc.Listen(context.Background(), "tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	s.startTime = time.Now()
	logListenBacklog(listener.Addr().String())

	if s.config.WebSocketAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/", s.HandleWebSocket)
		s.wsServer, s.wsAddr, err = s.serveHTTP(s.config.WebSocketAddr, mux)
		if err != nil {
			s.listener.Close()
			return fmt.Errorf("failed to start WebSocket listener: %w", err)
		}
		log.Info().Str("addr", s.wsAddr.String()).Msg("WebSocket listener started")
	}

	if s.config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		mux.HandleFunc("/health", s.HealthHandler)
		s.httpServer, s.metricsAddr, err = s.serveHTTP(s.config.MetricsAddr, mux)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("failed to start metrics listener: %w", err)
		}
		log.Info().Str("addr", s.metricsAddr.String()).Msg("metrics listener started")
	}

	s.wg.Add(1)
	go s.monitorListenOverflows()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) serveHTTP(addr string, handler http.Handler) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("HTTP server failed")
		}
	}()
	return srv, ln.Addr(), nil
}

// Addr returns the TCP listen address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the WebSocket listen address, nil when disabled
func (s *Server) WebSocketAddr() net.Addr {
	return s.wsAddr
}

// MetricsAddr returns the metrics listen address, nil when disabled
func (s *Server) MetricsAddr() net.Addr {
	return s.metricsAddr
}

// Sessions returns the live session tracker
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Hooks returns the hook table frames are dispatched through
func (s *Server) Hooks() *hook.Table {
	return s.hooks
}

func (s *Server) closeListeners() {
	if s.listener != nil {
		s.listener.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{s.wsServer, s.httpServer} {
		if srv != nil {
			srv.Shutdown(ctx)
		}
	}
}

// Stop closes the listeners and every session, then waits for them to end
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.closeListeners()
		s.sessions.CloseAll()
		s.wg.Wait()
		log.Info().Msg("relay stopped")
	})
	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("accept error")
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection dials the upstream for a new client and relays until
// either side goes away
func (s *Server) handleConnection(client net.Conn) {
	upstream, err := net.DialTimeout("tcp", s.config.UpstreamAddr, s.config.DialTimeout)
	if err != nil {
		s.metrics.RecordDialFailure()
		log.Warn().Err(err).Str("client", client.RemoteAddr().String()).Str("upstream", s.config.UpstreamAddr).Msg("upstream dial failed")
		client.Close()
		return
	}
	if tcpConn, ok := upstream.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	sess, err := s.sessions.CreateSession(client, upstream)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create session")
		client.Close()
		upstream.Close()
		return
	}
	defer s.sessions.RemoveSession(sess.ID())

	logger := log.With().Uint64("session", sess.ID()).Logger()
	logger.Info().Str("client", client.RemoteAddr().String()).Str("upstream", upstream.RemoteAddr().String()).Msg("session started")

	done := make(chan error, 2)
	go func() { done <- s.pump(sess, FromClient) }()
	go func() { done <- s.pump(sess, FromServer) }()

	err = <-done
	s.sessions.RemoveSession(sess.ID())
	<-done

	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		logger.Info().Dur("duration", time.Since(sess.Created())).Msg("session ended")
		return
	}
	logger.Warn().Err(err).Dur("duration", time.Since(sess.Created())).Msg("session ended with error")
}

func controlSocket(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = setSocketOptions(fd)
	}); err != nil {
		return err
	}
	return sockErr
}
