// Package server assembles the echo HTTP server for the management API.
package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/botdock/botdock/internal/auth"
	"github.com/botdock/botdock/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(addr, jwtSecret string, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, botsHandler *handlers.BotsHandler, channelHandler *handlers.ChannelHandler) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		path := c.Request().URL.Path
		return path == "/ping" || path == "/health" || path == "/auth/login"
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if botsHandler != nil {
		botsHandler.Register(e)
	}
	if channelHandler != nil {
		channelHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
