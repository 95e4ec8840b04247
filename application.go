package httpwire

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds graceful shutdown when no timeout is configured.
const DefaultShutdownTimeout = 10 * time.Second

// Application wires together configuration, logging and the HTTP server.
type Application struct {
	Config Config
	Logger Logger
	Server *Server
}

// ApplicationOptions configure application bootstrapping.
type ApplicationOptions struct {
	// Core dependencies (required)
	Config Config
	Logger Logger

	// Server configuration
	ServerConfig *ServerConfig

	// Route mounting function
	RouteMountFunc func(*Server)

	// Catch-all redirect path for unmatched routes
	CatchAllRedirect string
}

// NewApplication constructs an application.
func NewApplication(opts ApplicationOptions) (*Application, error) {
	serverCfg := opts.ServerConfig
	if serverCfg == nil {
		serverCfg = DefaultServerConfig()
	}
	serverCfg.Config = opts.Config
	serverCfg.Logger = opts.Logger

	server, err := NewServer(serverCfg)
	if err != nil {
		return nil, err
	}

	if opts.CatchAllRedirect != "" {
		server.SetCatchAllRedirect(opts.CatchAllRedirect)
	}
	if opts.RouteMountFunc != nil {
		opts.RouteMountFunc(server)
	}

	return &Application{
		Config: opts.Config,
		Logger: opts.Logger,
		Server: server,
	}, nil
}

// Shutdown gracefully stops the server.
func (a *Application) Shutdown(ctx context.Context) error {
	return a.Server.Shutdown(ctx)
}

// Run starts the application and waits for SIGINT or SIGTERM, then shuts down
// with DefaultShutdownTimeout.
func (a *Application) Run() error {
	return a.RunWithTimeout(DefaultShutdownTimeout)
}

// RunWithTimeout is Run with an explicit shutdown timeout.
func (a *Application) RunWithTimeout(timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", ":"+a.Config.GetPort())
	if err != nil {
		return errors.Wrap(err, "httpwire: listen")
	}
	return a.Serve(ctx, ln, timeout)
}

// Serve serves on ln until ctx is done or the server fails, then shuts down
// within timeout.
func (a *Application) Serve(ctx context.Context, ln net.Listener, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("graceful shutdown failed", "error", err)
			return err
		}
		a.Logger.Info("shutdown complete")
		return nil
	})
	return g.Wait()
}
