package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleError renders err as {"error": message}. Taxonomy errors keep
// their status and message, echo errors keep their code, and anything
// else becomes an opaque 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)

	var apiErr *v1.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.Status, apiErr.Message
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}

	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed",
			zap.Int("status", status),
			zap.String("kind", string(v1.KindOf(err))),
			zap.Error(err))
	} else {
		s.logger.Debug(ctx, "request rejected", zap.Int("status", status), zap.String("error", msg))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Warn(ctx, "writing error response failed", zap.Error(err))
	}
}
