// Package clienterrors records error reports sent by browser clients.
// Report text is scrubbed of credentials before it is stored or logged.
package clienterrors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"github.com/fyrsmithlabs/ragbrain/pkg/secrets"
)

const defaultWhere = "unknown"

// Report is one client error report.
type Report struct {
	Where string
	Error string
	At    string
}

// Sink persists reports.
type Sink interface {
	InsertClientError(ctx context.Context, where, text, at string) error
}

// Redactor scrubs secrets from report text.
type Redactor interface {
	Redact(content string) secrets.RedactResult
}

// Service normalizes, redacts and stores reports.
type Service struct {
	sink     Sink
	redactor Redactor
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRedactor sets the secret redactor. Without one, text is stored as sent.
func WithRedactor(r Redactor) Option {
	return func(s *Service) { s.redactor = r }
}

// WithClock overrides the time source used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil sink logs reports instead of
// storing them.
func NewService(sink Sink, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Service{sink: sink, logger: logger.Named("client_errors"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize fills defaults: where "unknown" and at the current time in
// RFC 3339 with milliseconds.
func (s *Service) Normalize(r Report) Report {
	if r.Where == "" {
		r.Where = defaultWhere
	}
	if r.At == "" {
		r.At = s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return r
}

// Record stores r after normalization and redaction.
func (s *Service) Record(ctx context.Context, r Report) error {
	r = s.Normalize(r)
	if s.redactor != nil {
		res := s.redactor.Redact(r.Error)
		if res.Audit.HasRedactions() {
			s.logger.Info(ctx, "secrets redacted from client error",
				zap.Int("count", res.Audit.Summary.TotalSecrets),
				zap.Strings("rules", res.Audit.RuleIDs()))
		}
		r.Error = res.Content
	}

	if s.sink == nil {
		s.logger.Warn(ctx, "client error",
			zap.String("where", r.Where),
			zap.String("at", r.At),
			zap.String("error", r.Error))
		return nil
	}
	if err := s.sink.InsertClientError(ctx, r.Where, r.Error, r.At); err != nil {
		s.logger.Error(ctx, "storing client error failed", zap.Error(err))
		return err
	}
	return nil
}
