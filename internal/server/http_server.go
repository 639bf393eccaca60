package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	apiecho "github.com/keeperfind/keeper-auth/api/echo"
	"github.com/keeperfind/keeper-auth/config"
)

// NewHTTPServer creates and configures the echo HTTP server.
func NewHTTPServer(cfg *config.Config, api *apiecho.AuthCodeAPI) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())

	api.RegisterRoutes(e)

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger logs every request with latency and outcome. Request bodies
// are never logged; they can carry plaintext codes.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			req := c.Request()
			res := c.Response()

			evt := log.Info()
			if err != nil {
				evt = log.Error().Err(err)
			}
			evt.Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Str("latency", latency.String()).
				Str("ip", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}
