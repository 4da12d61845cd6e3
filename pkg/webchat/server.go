package webchat

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatbot/pkg/chatapi"
	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/redisstream"
	"github.com/go-go-golems/chatbot/pkg/ui/web"
)

type Config struct {
	Addr        string
	Title       string
	Markdown    bool
	IdleTimeout time.Duration
	// Transports connects new sessions to a chat backend.
	Transports TransportFactory
	// Engine backs /api/chat. A nil engine makes the endpoint answer 503.
	Engine inference.Engine
	Bus    *redisstream.Bus
	Logger zerolog.Logger
}

// Server drives the HTTP server and session lifecycle.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	renderer *web.Renderer
	manager  *Manager
	httpSrv  *http.Server
}

func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("ctx is nil")
	}
	logger := cfg.Logger.With().Str("component", "webchat").Logger()
	renderer, err := web.NewRenderer(web.WithTitle(cfg.Title), web.WithMarkdown(cfg.Markdown))
	if err != nil {
		return nil, err
	}
	manager, err := NewManager(ctx, ManagerConfig{
		Transports:  cfg.Transports,
		Renderer:    renderer,
		Bus:         cfg.Bus,
		IdleTimeout: cfg.IdleTimeout,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, logger: logger, renderer: renderer, manager: manager}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Manager() *Manager { return s.manager }

func (s *Server) HTTPServer() *http.Server { return s.httpSrv }

// Handler returns the mux with every route mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))
	mux.HandleFunc("/submit", newSubmitHandler(s.manager, s.logger))
	mux.HandleFunc("/ws", newWSHandler(s.manager, s.renderer, s.logger))
	mux.HandleFunc("/api/chat", chatapi.NewChatHandler(s.cfg.Engine, s.cfg.Logger))
	mux.HandleFunc("/api", chatapi.NewExampleHandler())
	mux.HandleFunc("/", newIndexHandler(s.manager, s.renderer, s.logger))
	return withRequestLog(mux, s.logger)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts the HTTP
// server down, closes every session and the update bus.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()
	eg, egCtx := errgroup.WithContext(srvCtx)

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			s.logger.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-egCtx.Done():
		}
		srvCancel()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		err := s.httpSrv.Shutdown(shutdownCtx)
		if err != nil {
			s.logger.Error().Err(err).Msg("server shutdown error")
		}
		s.manager.Close()
		if s.cfg.Bus != nil {
			if cerr := s.cfg.Bus.Close(); cerr != nil {
				s.logger.Error().Err(cerr).Msg("update bus close error")
			}
		}
		s.logger.Info().Msg("server shutdown complete")
		return errors.Wrap(err, "shutdown")
	})

	eg.Go(func() error {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("starting chatbot server")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("server listen error")
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	return eg.Wait()
}
