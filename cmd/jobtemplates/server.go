package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/artpar/jobtemplates/internal/shell/api"
	"github.com/artpar/jobtemplates/internal/shell/registry"
	"github.com/artpar/jobtemplates/internal/shell/seed"
	"github.com/artpar/jobtemplates/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitSeedError       = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server is the job template registry service.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	registry   *registry.Registry
	logger     *slog.Logger
}

// NewServer opens the store, applies the seed file and builds the HTTP server.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	if err := ensureDatabaseDir(cfg.Database.DSN); err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	reg := registry.New(s, logger)

	if cfg.Seed.File != "" {
		if err := applySeed(cfg.Seed.File, reg, logger); err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitSeedError,
			}
		}
	}

	handler := api.SetupAPI(api.APIConfig{
		Registry: reg,
		Store:    s,
		Logger:   logger,
		Version:  Version,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		registry:   reg,
		logger:     logger,
	}, nil
}

// Start serves HTTP and blocks until a shutdown signal, ctx cancellation or
// a listener error.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.closeStore()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.closeStore()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.closeStore()

	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}

func applySeed(path string, reg *registry.Registry, logger *slog.Logger) error {
	cmds, err := seed.Load(path)
	if err != nil {
		return err
	}
	return seed.Apply(context.Background(), reg, cmds, logger)
}

// ensureDatabaseDir creates the directory holding a file-backed SQLite database.
func ensureDatabaseDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
