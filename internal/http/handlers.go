package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/clienterrors"
	"github.com/fyrsmithlabs/ragbrain/internal/ingest"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"github.com/fyrsmithlabs/ragbrain/internal/orchestrator"
	"github.com/fyrsmithlabs/ragbrain/pkg/auth"
)

const healthTimeout = 5 * time.Second

// BrainRequest is the request body for POST /api/v1/brain.
type BrainRequest struct {
	UserID     flexString `json:"userId"`
	BusinessID flexString `json:"businessId"`
	Message    flexString `json:"message"`
	SessionID  flexString `json:"sessionId"`
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	BusinessID flexString     `json:"businessId"`
	Content    flexString     `json:"content"`
	Title      flexString     `json:"title"`
	DocID      flexString     `json:"docId"`
	Metadata   map[string]any `json:"metadata"`
}

// ClientErrorRequest is the request body for POST /api/v1/client-errors.
type ClientErrorRequest struct {
	Where flexString `json:"where"`
	Error flexString `json:"error"`
	At    flexString `json:"at"`
}

// OKResponse acknowledges a write. Error is set only when OK is false.
type OKResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DependencyHealth is the response body for GET /api/v1/health.
type DependencyHealth struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Gateway string `json:"gateway"`
}

// handleLiveness returns a simple health check response.
func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleBrain answers one chat message.
func (s *Server) handleBrain(c echo.Context) error {
	body, err := decodeBody[BrainRequest](c)
	if err != nil {
		return err
	}

	req := orchestrator.Request{
		UserID:     body.UserID.String(),
		BusinessID: body.BusinessID.String(),
		Message:    body.Message.String(),
		SessionID:  body.SessionID.String(),
		Credential: auth.Credential(c),
	}
	ctx := logging.WithConversation(c.Request().Context(),
		strings.TrimSpace(req.UserID), strings.TrimSpace(req.BusinessID), req.SessionID)
	if fp := auth.Fingerprint(req.Credential); fp != "" {
		s.logger.Debug(ctx, "brain request", zap.String("caller", fp))
	}

	resp, err := s.deps.Brain.Execute(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// handleIngest stores one tenant document.
func (s *Server) handleIngest(c echo.Context) error {
	body, err := decodeBody[IngestRequest](c)
	if err != nil {
		return err
	}

	_, err = s.deps.Ingester.Ingest(c.Request().Context(), ingest.Request{
		BusinessID: body.BusinessID.String(),
		Content:    body.Content.String(),
		Title:      body.Title.String(),
		DocID:      body.DocID.String(),
		Metadata:   body.Metadata,
		Credential: auth.Credential(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OKResponse{OK: true})
}

// handleClientError records a browser error report. It always answers
// 200; a malformed body is recorded as an empty report.
func (s *Server) handleClientError(c echo.Context) error {
	body, err := decodeBody[ClientErrorRequest](c)
	if err != nil {
		body = &ClientErrorRequest{}
	}

	err = s.deps.ClientErrors.Record(c.Request().Context(), clienterrors.Report{
		Where: body.Where.String(),
		Error: body.Error.String(),
		At:    body.At.String(),
	})
	if err != nil {
		return c.JSON(http.StatusOK, OKResponse{OK: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, OKResponse{OK: true})
}

// handleHealth checks the store and the upstream gateway. It always
// answers 200 and reports each dependency as "ok" or "fail".
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	db := s.check(ctx, "db", s.deps.Store)
	gw := s.check(ctx, "gateway", s.deps.Gateway)
	return c.JSON(http.StatusOK, DependencyHealth{
		OK:      db && gw,
		DB:      status(db),
		Gateway: status(gw),
	})
}

func (s *Server) check(ctx context.Context, name string, dep Checker) bool {
	if dep == nil {
		return false
	}
	if err := dep.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", zap.String("dependency", name), zap.Error(err))
		return false
	}
	return true
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
