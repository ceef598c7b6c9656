// Package server runs the control-channel listener: one handler per accepted
// connection, each reading exactly one LIST or STREAM request.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"media-distribution/internal/ffmpeg"
	"media-distribution/internal/platform/metrics"
	"media-distribution/internal/session"
	"media-distribution/internal/transport"
)

// Pump is a running media pump process.
type Pump interface {
	Pid() int
	StartedAt() time.Time
	Done() <-chan struct{}
	Wait() error
	Output() []string
	Stop(grace time.Duration) error
	Stopped() bool
}

// Launcher starts pumps. The returned pump must outlive ctx.
type Launcher interface {
	Start(ctx context.Context, args ...string) (Pump, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, args ...string) (Pump, error)

func (f LauncherFunc) Start(ctx context.Context, args ...string) (Pump, error) {
	return f(ctx, args...)
}

// FFmpegLauncher launches pumps with r.
func FFmpegLauncher(r *ffmpeg.Runner) Launcher {
	return LauncherFunc(func(ctx context.Context, args ...string) (Pump, error) {
		p, err := r.Start(ctx, args...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// SDP delivery modes.
const (
	DeliverDirect = "direct"
	DeliverFile   = "file"
)

// Config holds the handler settings.
type Config struct {
	MediaDir string
	// MaxConnections bounds concurrent handlers; 0 means unbounded.
	MaxConnections int
	// ReadTimeout bounds the time to receive a full request; 0 means none.
	ReadTimeout time.Duration
	// SDPDelivery is DeliverDirect or DeliverFile.
	SDPDelivery    string
	SDPWaitTimeout time.Duration
	// DynamicRTPPorts asks the session table for a port pair per RTP session.
	DynamicRTPPorts bool
	// StopGrace is the interrupt-to-kill delay used when stopping pumps.
	StopGrace time.Duration
}

// Server accepts control connections and launches pumps.
type Server struct {
	cfg        Config
	log        *slog.Logger
	metrics    *metrics.Metrics
	negotiator *transport.Negotiator
	sessions   *session.Table
	launcher   Launcher
	admission  *semaphore.Weighted

	handlers sync.WaitGroup
	watchers sync.WaitGroup

	mu    sync.Mutex
	pumps map[session.ID]Pump
	conns map[net.Conn]struct{}
}

// New returns a Server. Metrics may be nil.
func New(cfg Config, negotiator *transport.Negotiator, sessions *session.Table, launcher Launcher, log *slog.Logger, m *metrics.Metrics) *Server {
	if cfg.SDPDelivery == "" {
		cfg.SDPDelivery = DeliverDirect
	}
	if cfg.SDPWaitTimeout <= 0 {
		cfg.SDPWaitTimeout = 5 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 2 * time.Second
	}
	s := &Server{
		cfg:        cfg,
		log:        log.With("component", "control-server"),
		metrics:    m,
		negotiator: negotiator,
		sessions:   sessions,
		launcher:   launcher,
		pumps:      make(map[session.ID]Pump),
		conns:      make(map[net.Conn]struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.admission = semaphore.NewWeighted(int64(cfg.MaxConnections))
	}
	return s
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections until ctx is cancelled, then closes the open
// connections and waits for their handlers. Pumps keep running; see StopPumps.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("listening", "addr", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.drain()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.drain()
				return err
			}
			s.log.Warn("accept error", "error", err)
			continue
		}
		s.metrics.IncConnections()

		if s.admission != nil && !s.admission.TryAcquire(1) {
			s.metrics.IncConnectionsRejected()
			s.log.Warn("connection rejected, handler pool full", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			if s.admission != nil {
				defer s.admission.Release(1)
			}
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			s.handleConn(ctx, conn)
		}()
	}
}

// drain closes the connections still open and waits for their handlers.
func (s *Server) drain() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.handlers.Wait()
}

// track watches a launched pump until it exits.
func (s *Server) track(id session.ID, pump Pump, sdpFile string, log *slog.Logger) {
	s.mu.Lock()
	s.pumps[id] = pump
	s.mu.Unlock()

	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()

		err := pump.Wait()
		switch {
		case err != nil && !pump.Stopped():
			s.metrics.IncPumpFailures()
			log.Error("pump failed", "error", err.Error(), "output", pump.Output())
			_ = s.sessions.Advance(id, session.StateFailed)
		default:
			log.Info("pump exited", "stopped", pump.Stopped())
			_ = s.sessions.Advance(id, session.StateExited)
		}

		s.mu.Lock()
		delete(s.pumps, id)
		s.mu.Unlock()
		s.sessions.Release(id)
		removeSDPFile(sdpFile, log)
	}()
}

// StopPumps terminates every running pump and waits for their watchers.
func (s *Server) StopPumps() {
	s.mu.Lock()
	pumps := make([]Pump, 0, len(s.pumps))
	for _, p := range s.pumps {
		pumps = append(pumps, p)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pumps {
		wg.Add(1)
		go func(p Pump) {
			defer wg.Done()
			if err := p.Stop(s.cfg.StopGrace); err != nil {
				s.log.Error("stop pump", "pid", p.Pid(), "error", err)
			}
		}(p)
	}
	wg.Wait()
	s.watchers.Wait()
	if len(pumps) > 0 {
		s.log.Info("pumps stopped", "count", len(pumps))
	}
}

// ActivePumps is the number of pumps still running.
func (s *Server) ActivePumps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pumps)
}
