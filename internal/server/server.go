package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/attendhq/attend/internal/auth"
	"github.com/attendhq/attend/internal/config"
	"github.com/attendhq/attend/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, branchHandler *handlers.BranchHandler, sessionHandler *handlers.SessionHandler) *Server {
	if log == nil {
		log = slog.Default()
	}
	addr := cfg.Server.Addr
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(cfg.Auth.JWTSecret, func(c echo.Context) bool {
		return shouldSkipJWT(c.Request().URL.Path)
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if branchHandler != nil {
		branchHandler.Register(e)
	}
	if sessionHandler != nil {
		sessionHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

// shouldSkipJWT exempts the liveness and login endpoints. The websocket
// status stream still authenticates via the query token.
func shouldSkipJWT(path string) bool {
	switch path {
	case "/ping", "/health", "/auth/login":
		return true
	}
	return false
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
