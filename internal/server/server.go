// Package server hosts a live vehicle over websockets. Clients steer the
// shared vehicle with input, key and gamepad messages and receive pose frames
// as it moves.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server runs the session tick loop and the HTTP endpoints.
type Server struct {
	cfg     config.ServerConfig
	logger  *zap.Logger
	session *Session
	hub     *Hub
	limiter *rate.Limiter
	http    *http.Server

	stop     context.CancelFunc
	loopDone chan struct{}
	once     sync.Once
}

// New builds a server around a fresh session for params.
func New(cfg config.ServerConfig, params vehicle.Params, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !(cfg.BroadcastRate > 0) {
		return nil, fmt.Errorf("broadcast rate must be positive, got %g", cfg.BroadcastRate)
	}
	session, err := NewSession(params, cfg.TickRate)
	if err != nil {
		return nil, err
	}
	logger = logger.Named("server")
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		session: session,
		hub:     NewHub(session, logger),
		limiter: rate.NewLimiter(rate.Limit(cfg.BroadcastRate), 1),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Session exposes the live session.
func (s *Server) Session() *Session { return s.session }

// Hub exposes the client hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes: /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.HandleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"session": s.session.ID(),
		"clients": s.hub.Clients(),
	})
}

// Start launches the tick loop. It stops when ctx is done or on Shutdown.
func (s *Server) Start(ctx context.Context) {
	s.once.Do(func() {
		ctx, s.stop = context.WithCancel(ctx)
		s.loopDone = make(chan struct{})
		go s.loop(ctx)
	})
}

func (s *Server) loop(ctx context.Context) {
	defer close(s.loopDone)
	period := time.Duration(float64(time.Second) / s.cfg.TickRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	s.logger.Info("Session started",
		zap.String("session", s.session.ID()),
		zap.Float64("tickRate", s.cfg.TickRate),
		zap.Float64("broadcastRate", s.cfg.BroadcastRate))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame, ok := s.session.Advance(now.Sub(last).Seconds())
			last = now
			if ok && s.limiter.Allow() {
				if err := s.hub.Broadcast(frame); err != nil {
					s.logger.Warn("Broadcast failed", zap.Error(err))
				}
			}
		}
	}
}

// ListenAndServe starts the tick loop and serves HTTP on cfg.Addr until ctx
// is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start(ctx)
	s.logger.Info("Listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, disconnects every client, stops the
// tick loop and closes the session.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.http.Shutdown(ctx)
	hubErr := s.hub.Close(ctx)
	if s.stop != nil {
		s.stop()
		select {
		case <-s.loopDone:
		case <-ctx.Done():
		}
	}
	s.session.Close()
	s.logger.Info("Server stopped")
	return errors.Join(httpErr, hubErr)
}
