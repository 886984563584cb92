// Package gateway is the typed client for the upstream generation and
// embedding gateway. Every call is a single JSON POST carrying the
// caller's credential as a Bearer token. Nothing is retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/ragbrain/internal/config"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 16 << 20

// Operation names used in errors, logs and metrics.
const (
	OpEmbed    = "embed"
	OpGenerate = "generate"
	OpHealth   = "health"
)

var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid gateway configuration")
)

// Config holds the gateway endpoints.
type Config struct {
	Origin     string
	ChatPath   string
	EmbedPath  string
	StreamPath string
	HealthPath string

	// Timeout bounds each call. Zero leaves deadlines to the caller's ctx.
	Timeout time.Duration
}

// ConfigFrom maps the loaded gateway settings.
func ConfigFrom(g config.GatewayConfig) Config {
	return Config{
		Origin:     g.Origin,
		ChatPath:   g.ChatPath,
		EmbedPath:  g.EmbedPath,
		StreamPath: g.StreamPath,
		HealthPath: g.HealthPath,
		Timeout:    g.Timeout.Duration(),
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: origin %q must be an absolute URL", ErrInvalidConfig, c.Origin)
	}
	if c.ChatPath == "" || c.EmbedPath == "" {
		return fmt.Errorf("%w: chat and embed paths required", ErrInvalidConfig)
	}
	return nil
}

// Client talks to the gateway.
type Client struct {
	config  Config
	origin  string
	client  *http.Client
	logger  *logging.Logger
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMeter records request metrics on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(c *Client) { c.metrics = newMetrics(m, c.logger) }
}

// NewClient creates a gateway client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config: cfg,
		origin: strings.TrimRight(cfg.Origin, "/"),
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(c.logger)
	}
	return c, nil
}

// Origin returns the gateway origin without a trailing slash.
func (c *Client) Origin() string { return c.origin }

// ChatPath returns the chat endpoint path.
func (c *Client) ChatPath() string { return c.config.ChatPath }

// StreamPath returns the streaming chat endpoint path.
func (c *Client) StreamPath() string { return c.config.StreamPath }

// Embed embeds one input text.
func (c *Client) Embed(ctx context.Context, credential string, req EmbedRequest) Result[EmbedResponse] {
	start := time.Now()
	status, body, err := c.post(ctx, OpEmbed, c.config.EmbedPath, credential, req)
	res := Result[EmbedResponse]{Status: status, Err: err}
	if err == nil {
		var wire embedWire
		if jerr := json.Unmarshal(body, &wire); jerr != nil {
			res.Err = &ParseError{Op: OpEmbed, Status: status, Err: jerr}
		} else {
			res.Value = EmbedResponse{Embedding: wire.vector(), Raw: body}
		}
	}
	c.metrics.Record(ctx, OpEmbed, status, time.Since(start), res.Err)
	c.logger.Trace(ctx, "gateway embed",
		zap.Int("status", status),
		zap.Int("input_chars", len(req.Input)),
		zap.Int("dimension", len(res.Value.Embedding)),
		zap.Duration("duration", time.Since(start)),
	)
	return res
}

// Generate runs one chat completion.
func (c *Client) Generate(ctx context.Context, credential string, req ChatRequest) Result[ChatResponse] {
	start := time.Now()
	status, body, err := c.post(ctx, OpGenerate, c.config.ChatPath, credential, req)
	res := Result[ChatResponse]{Status: status, Err: err}
	if err == nil {
		var wire chatWire
		if jerr := json.Unmarshal(body, &wire); jerr != nil {
			res.Err = &ParseError{Op: OpGenerate, Status: status, Err: jerr}
		} else {
			res.Value = ChatResponse{
				OutputText: text(wire.OutputText),
				Usage:      relay(wire.Usage),
				Month:      relay(wire.Month),
				Raw:        body,
			}
		}
	}
	c.metrics.Record(ctx, OpGenerate, status, time.Since(start), res.Err)
	c.logger.Trace(ctx, "gateway generate",
		zap.Int("status", status),
		zap.Int("messages", len(req.Messages)),
		zap.Int("reply_chars", len(res.Value.OutputText)),
		zap.Duration("duration", time.Since(start)),
	)
	return res
}

// Health probes the gateway health endpoint without credentials.
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+c.config.HealthPath, nil)
	if err != nil {
		return &TransportError{Op: OpHealth, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		err = &TransportError{Op: OpHealth, Err: err}
		c.metrics.Record(ctx, OpHealth, 0, time.Since(start), err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = &StatusError{Op: OpHealth, Status: resp.StatusCode}
	}
	c.metrics.Record(ctx, OpHealth, resp.StatusCode, time.Since(start), err)
	return err
}

// post sends payload and returns the status and body of a 2xx response.
// A non-2xx response yields a *StatusError, and no response at all a
// *TransportError.
func (c *Client) post(ctx context.Context, op, path, credential string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var wire errorWire
		_ = json.Unmarshal(body, &wire)
		return resp.StatusCode, body, &StatusError{Op: op, Status: resp.StatusCode, Message: text(wire.Error)}
	}
	return resp.StatusCode, body, nil
}
