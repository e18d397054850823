package server

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/amariwan/cmd-chat/internal/protocol"
)

// Server accepts connections, performs the handshake, and runs one
// dispatcher plus one heartbeat goroutine per session. All shared state
// lives in the Registry.
type Server struct {
	cfg      *Config
	logger   zerolog.Logger
	registry *Registry
	tokens   map[string]struct{}
	connRate *ConnRateLimiter

	listener net.Listener
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// New builds a server from its configuration.
func New(cfg *Config, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		registry: NewRegistry(),
		tokens:   cfg.TokenSet(),
		shutdown: make(chan struct{}),
	}
	if cfg.ConnRateLimitEnabled {
		s.connRate = NewConnRateLimiter(ConnRateLimiterConfig{
			IPBurst:     cfg.ConnRateIPBurst,
			IPRate:      cfg.ConnRateIPRate,
			GlobalBurst: cfg.ConnRateGlobalBurst,
			GlobalRate:  cfg.ConnRateGlobalRate,
			Logger:      logger,
		})
	}
	return s
}

// Registry exposes the session registry, mainly for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the bound listener address, valid after Run has started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens and serves until ctx is cancelled. It returns after every
// session goroutine has exited.
func (s *Server) Run(ctx context.Context) error {
	ln, err := listen(s.cfg.Host, s.cfg.Port, s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		return err
	}
	s.listener = ln

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.CertFile != "" && s.cfg.KeyFile != "").
		Bool("auth", len(s.tokens) > 0).
		Msg("server listening")

	if s.cfg.MetricsInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.metricsLoop(ctx, time.Duration(s.cfg.MetricsInterval)*time.Second)
		}()
	}
	var metricsHTTP interface{ Close() error }
	if s.cfg.MetricsAddr != "" {
		metricsHTTP = s.serveMetricsHTTP(s.cfg.MetricsAddr)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resourceLoop(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				if metricsHTTP != nil {
					_ = metricsHTTP.Close()
				}
				if s.connRate != nil {
					s.connRate.Stop()
				}
				s.logger.Info().Msg("server stopped")
				return nil
			default:
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		if s.connRate != nil && !s.connRate.Allow(remoteIP(conn)) {
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Stop closes the listener and every live session, then lets Run drain.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		for _, room := range s.registry.RoomNames() {
			for _, sess := range s.registry.MembersOf(room) {
				_ = sess.Send(protocol.NewSystem("Server shutting down.", sess.Room, 0))
				sess.Close()
			}
		}
	})
}

func (s *Server) serveConn(conn net.Conn) {
	sess, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn().
			Str("peer", conn.RemoteAddr().String()).
			Err(err).
			Msg("handshake failed")
		_ = conn.Close()
		return
	}
	s.serveSession(sess)
}

// resourceLoop logs process memory every 30 seconds so long-running
// deployments leave a usage trail without an external scraper.
func (s *Server) resourceLoop(ctx context.Context) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.Error().Err(err).Msg("process inspection unavailable")
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			memInfo, err := proc.MemoryInfo()
			if err != nil {
				continue
			}
			s.logger.Debug().
				Float64("rss_mb", float64(memInfo.RSS)/1024/1024).
				Int("clients", s.registry.SessionCount()).
				Int("rooms", s.registry.RoomCount()).
				Msg("resource snapshot")
		}
	}
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
