package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/gateway"
	"github.com/fyrsmithlabs/ragbrain/internal/logging"
	"github.com/fyrsmithlabs/ragbrain/internal/packet"
	"github.com/fyrsmithlabs/ragbrain/internal/retrieval"
	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

const instrumentationName = "github.com/fyrsmithlabs/ragbrain/internal/orchestrator"

// Gateway is the subset of the gateway client the pipeline calls.
type Gateway interface {
	Embed(ctx context.Context, credential string, req gateway.EmbedRequest) gateway.Result[gateway.EmbedResponse]
	Generate(ctx context.Context, credential string, req gateway.ChatRequest) gateway.Result[gateway.ChatResponse]
}

// Retriever produces the hybrid retrieval context.
type Retriever interface {
	RetrieveHybrid(ctx context.Context, userID, businessID string, query []float32, topUser, topDocs int) (retrieval.Context, error)
}

// Handler executes one step.
type Handler func(ctx context.Context, s *State) error

// Step is a named pipeline step.
type Step struct {
	Name    StepName
	Handler Handler
}

// errSkipped marks a step that decided not to run.
var errSkipped = errors.New("step skipped")

// Pipeline answers chat messages. Safe for concurrent use; all
// per-request data lives in State.
type Pipeline struct {
	config    Config
	gateway   Gateway
	retriever Retriever
	turns     conversation.Store
	assembler packet.Assembler
	steps     []Step

	logger   *logging.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMeter records step durations on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(p *Pipeline) { p.duration = newStepHistogram(m) }
}

// WithTracer sets the tracer used for step spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// NewPipeline builds the pipeline.
func NewPipeline(cfg Config, gw Gateway, retriever Retriever, turns conversation.Store, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if gw == nil || retriever == nil || turns == nil {
		return nil, errors.New("gateway, retriever and turn store are required")
	}
	p := &Pipeline{
		config:    cfg,
		gateway:   gw,
		retriever: retriever,
		turns:     turns,
		assembler: packet.NewAssembler(cfg.Policy),
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.duration == nil {
		p.duration = newStepHistogram(otel.Meter(instrumentationName))
	}
	p.steps = p.defaultSteps()
	return p, nil
}

func newStepHistogram(m metric.Meter) metric.Float64Histogram {
	h, err := m.Float64Histogram(
		"ragbrain.pipeline.step.duration",
		metric.WithDescription("Duration of chat pipeline steps"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return h
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []StepName {
	names := make([]StepName, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Execute runs every step for req and returns the caller-facing response.
// Errors are *v1.Error values.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Response, error) {
	state, err := p.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return state.Response, nil
}

// Run executes the pipeline and returns the final state, which is also
// returned alongside an error so callers can inspect step results.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Execute")
	defer span.End()

	state := NewState(req)
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return state, v1.Internal("request cancelled", err)
		}
		if err := state.CanTransition(step.Name); err != nil {
			return state, v1.Internal("pipeline out of order", err)
		}
		if err := p.runStep(ctx, state, step); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(step.Name))
			return state, err
		}
		if step.Name == StepValidateRequest {
			r := state.Request
			ctx = logging.WithConversation(ctx, r.UserID, r.BusinessID, r.SessionID)
		}
	}
	return state, nil
}

func (p *Pipeline) runStep(ctx context.Context, state *State, step Step) error {
	ctx, span := p.tracer.Start(ctx, "Pipeline."+string(step.Name))
	defer span.End()

	start := time.Now()
	err := step.Handler(ctx, state)
	elapsed := time.Since(start)

	result := StepResult{Step: step.Name, StartedAt: start, Duration: elapsed, Status: StatusCompleted}
	switch {
	case errors.Is(err, errSkipped):
		result.Status = StatusSkipped
		err = nil
	case err != nil:
		result.Status = StatusFailed
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, v1.MessageOf(err))
	}
	state.Results = append(state.Results, result)
	state.Step = step.Name

	span.SetAttributes(attribute.String("status", string(result.Status)))
	if p.duration != nil {
		p.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("step", string(step.Name)),
			attribute.String("status", string(result.Status)),
		))
	}
	p.logger.Debug(ctx, "pipeline step",
		zap.String("step", string(step.Name)),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", elapsed),
	)
	return err
}
