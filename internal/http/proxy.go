package http

import (
	"bytes"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/pkg/auth"
)

// gatewayProxy forwards route to upstreamPath on origin. The caller's
// gateway key is sent as a Bearer token and an empty body becomes "{}".
func (s *Server) gatewayProxy(origin, route, upstreamPath string) echo.MiddlewareFunc {
	target, err := url.Parse(origin)
	if err != nil {
		// Config.Validate rejects unparsable origins before we get here.
		return func(echo.HandlerFunc) echo.HandlerFunc {
			return func(echo.Context) error {
				return echo.NewHTTPError(http.StatusBadGateway, "Gateway origin is not configured")
			}
		}
	}

	proxy := middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{{Name: "gateway", URL: target}}),
		Rewrite:  map[string]string{route: upstreamPath},
		ErrorHandler: func(c echo.Context, err error) error {
			s.logger.Warn(c.Request().Context(), "gateway proxy failed",
				zap.String("route", route), zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "Gateway unreachable")
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		forward := proxy(next)
		return func(c echo.Context) error {
			req := c.Request()
			req.Host = target.Host
			req.Header.Del(auth.HeaderGatewayKey)
			req.Header.Del(auth.HeaderAdminToken)
			if key := auth.Credential(c); key != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+key)
			} else {
				req.Header.Del(echo.HeaderAuthorization)
			}
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

			body, err := io.ReadAll(req.Body)
			if err != nil {
				return err
			}
			if len(bytes.TrimSpace(body)) == 0 {
				body = []byte("{}")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
			return forward(c)
		}
	}
}
