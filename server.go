package httpwire

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/karloscodes/httpwire/middleware"
	"github.com/karloscodes/httpwire/multipart"
)

// ServerConfig provides server configuration with sensible defaults.
type ServerConfig struct {
	// Core dependencies (required)
	Config Config
	Logger Logger

	// Fiber configuration
	ErrorHandler   fiber.ErrorHandler
	Concurrency    int
	ProxyHeader    string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	// StreamRequestBody hands bodies larger than BodyLimit to handlers as a stream,
	// so multipart uploads are bounded by the upload limits instead.
	StreamRequestBody bool

	// Form parsing. Zero Limits take the values from Config when it implements
	// UploadConfigProvider, and the multipart defaults otherwise.
	UploadLimits  *multipart.Limits
	UploadFs      afero.Fs
	UploadTempDir string

	// Middleware configuration
	EnableRequestID      bool
	EnableRecover        bool
	EnableHelmet         bool
	EnableCompress       bool
	EnableRequestLogger  bool
	EnableConditionalGet bool
}

// DefaultServerConfig returns a configuration with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Concurrency:  256 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    64 << 20,

		EnableRequestID:      true,
		EnableRecover:        true,
		EnableHelmet:         true,
		EnableCompress:       true,
		EnableRequestLogger:  true,
		EnableConditionalGet: true,
	}
}

// RouteConfig allows per-route middleware customization.
type RouteConfig struct {
	// EnableCORS enables CORS for this route.
	EnableCORS bool
	CORSConfig *cors.Config

	// ParseForm parses the request body into a form before the handler runs.
	// Spooled uploads are removed once the handler returns.
	ParseForm bool

	// CustomMiddleware are additional middleware to run before the handler.
	CustomMiddleware []fiber.Handler
}

// Server wraps a fiber app with the parsing layer wired in.
type Server struct {
	app      *fiber.App
	cfg      *ServerConfig
	forms    middleware.FormConfig
	catchAll string
}

// NewServer creates a new server with the provided configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("httpwire: config is required")
	}
	if cfg.Config == nil {
		return nil, errors.New("httpwire: runtime config is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("httpwire: logger is required")
	}

	fiberCfg := fiber.Config{
		DisableDefaultDate:    true,
		DisableStartupMessage: true,
		Concurrency:           cfg.Concurrency,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		StreamRequestBody:     cfg.StreamRequestBody,
	}
	if cfg.ProxyHeader != "" {
		fiberCfg.ProxyHeader = cfg.ProxyHeader
	}
	if len(cfg.TrustedProxies) > 0 {
		fiberCfg.EnableTrustedProxyCheck = true
		fiberCfg.TrustedProxies = cfg.TrustedProxies
	}

	if cfg.ErrorHandler != nil {
		fiberCfg.ErrorHandler = cfg.ErrorHandler
	} else {
		fiberCfg.ErrorHandler = DefaultErrorHandler(slogFrom(cfg.Logger), cfg.Config.IsDevelopment())
	}

	server := &Server{
		app:   fiber.New(fiberCfg),
		cfg:   cfg,
		forms: formConfig(cfg),
	}
	server.setupGlobalMiddleware()

	return server, nil
}

// formConfig resolves upload settings from the server config, then the runtime
// config, then the defaults.
func formConfig(cfg *ServerConfig) middleware.FormConfig {
	fc := middleware.DefaultFormConfig()
	fc.Fs = cfg.UploadFs
	fc.TempDir = cfg.UploadTempDir
	fc.Logger = slogFrom(cfg.Logger)

	if p, ok := cfg.Config.(UploadConfigProvider); ok {
		fc.Limits = p.UploadLimits()
		if fc.TempDir == "" {
			fc.TempDir = p.GetUploadTempDir()
		}
	}
	if cfg.UploadLimits != nil {
		fc.Limits = *cfg.UploadLimits
	}
	return fc
}

// setupGlobalMiddleware applies standard middleware to all routes.
func (s *Server) setupGlobalMiddleware() {
	if s.cfg.EnableRequestID {
		s.app.Use(requestid.New())
	}

	if s.cfg.EnableRecover {
		s.app.Use(middleware.Recover(s.cfg.Logger))
	}

	if s.cfg.EnableHelmet {
		s.app.Use(helmet.New(helmet.Config{
			ReferrerPolicy: "strict-origin-when-cross-origin",
		}))
	}

	if s.cfg.EnableCompress {
		s.app.Use(compress.New(compress.Config{
			Level: compress.LevelDefault,
		}))
	}

	if s.cfg.EnableRequestLogger {
		s.app.Use(middleware.RequestLogger(s.cfg.Logger))
	}

	if s.cfg.EnableConditionalGet {
		s.app.Use(middleware.ConditionalGet(middleware.ConditionalGetConfig{
			Logger: slogFrom(s.cfg.Logger),
		}))
	}
}

// SetCatchAllRedirect configures a fallback redirect for unmatched routes.
func (s *Server) SetCatchAllRedirect(path string) {
	s.catchAll = path
}

// Get registers a GET route.
func (s *Server) Get(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodGet, path, handler, cfg...)
}

// Post registers a POST route.
func (s *Server) Post(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodPost, path, handler, cfg...)
}

// Put registers a PUT route.
func (s *Server) Put(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodPut, path, handler, cfg...)
}

// Delete registers a DELETE route.
func (s *Server) Delete(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodDelete, path, handler, cfg...)
}

// Patch registers a PATCH route.
func (s *Server) Patch(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodPatch, path, handler, cfg...)
}

// Options registers an OPTIONS route.
func (s *Server) Options(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodOptions, path, handler, cfg...)
}

// Head registers a HEAD route.
func (s *Server) Head(path string, handler HandlerFunc, cfg ...*RouteConfig) {
	s.registerRoute(fiber.MethodHead, path, handler, cfg...)
}

func (s *Server) registerRoute(method, path string, handler HandlerFunc, cfgs ...*RouteConfig) {
	var routeCfg *RouteConfig
	if len(cfgs) > 0 {
		routeCfg = cfgs[0]
	}

	var handlers []fiber.Handler
	if routeCfg != nil {
		// CORS must come first for preflight handling
		if routeCfg.EnableCORS {
			corsCfg := routeCfg.CORSConfig
			if corsCfg == nil {
				corsCfg = &cors.Config{
					AllowOrigins: "*",
					AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
					AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-Match, If-None-Match",
				}
			}
			handlers = append(handlers, cors.New(*corsCfg))
		}

		if routeCfg.ParseForm {
			handlers = append(handlers, middleware.ParseForm(s.forms))
		}

		handlers = append(handlers, routeCfg.CustomMiddleware...)
	}

	handlers = append(handlers, s.wrapHandler(handler))
	s.app.Add(method, path, handlers...)
}

// wrapHandler converts a HandlerFunc to a Fiber handler. A form parsed lazily
// through Context.Form is removed when the handler returns.
func (s *Server) wrapHandler(handler HandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := &Context{
			Ctx:    c,
			Logger: s.cfg.Logger,
			Config: s.cfg.Config,
			forms:  s.forms,
		}
		c.Locals(contextLocalsKey, ctx)
		defer ctx.release()
		return handler(ctx)
	}
}

// App returns the underlying Fiber application for advanced usage.
func (s *Server) App() *fiber.App {
	return s.app
}

// GetLogger returns the logger.
func (s *Server) GetLogger() Logger {
	return s.cfg.Logger
}

func (s *Server) mountCatchAll() {
	if s.catchAll != "" {
		s.app.All("*", func(c *fiber.Ctx) error {
			return c.Redirect(s.catchAll, fiber.StatusTemporaryRedirect)
		})
	}
}

// Start starts the HTTP server on the configured port.
func (s *Server) Start() error {
	s.mountCatchAll()

	port := s.cfg.Config.GetPort()
	s.cfg.Logger.Info("server started and ready to accept requests", "port", port)
	return s.app.Listen(":" + port)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mountCatchAll()

	s.cfg.Logger.Info("server started and ready to accept requests", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server, giving up when ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
