package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/gateway"
	"github.com/fyrsmithlabs/ragbrain/internal/retrieval"
)

// StepName identifies a pipeline step.
type StepName string

const (
	StepValidateRequest      StepName = "validate_request"
	StepEncodeQuery          StepName = "encode_query"
	StepRetrieve             StepName = "retrieve"
	StepLoadRecentMessages   StepName = "load_recent_messages"
	StepAssembleRequest      StepName = "assemble_request"
	StepPersistUserTurn      StepName = "persist_user_turn"
	StepGenerate             StepName = "generate"
	StepValidateReply        StepName = "validate_reply"
	StepEncodeReply          StepName = "encode_reply"
	StepPersistAssistantTurn StepName = "persist_assistant_turn"
	StepReportBudget         StepName = "report_budget"
)

// AllSteps returns every step in execution order.
func AllSteps() []StepName {
	return []StepName{
		StepValidateRequest,
		StepEncodeQuery,
		StepRetrieve,
		StepLoadRecentMessages,
		StepAssembleRequest,
		StepPersistUserTurn,
		StepGenerate,
		StepValidateReply,
		StepEncodeReply,
		StepPersistAssistantTurn,
		StepReportBudget,
	}
}

// StepStatus is the outcome of a step.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// StepResult captures one step execution.
type StepResult struct {
	Step      StepName      `json:"step"`
	Status    StepStatus    `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Request is one inbound chat message.
type Request struct {
	UserID     string
	BusinessID string
	Message    string
	SessionID  string

	// Credential is forwarded to the gateway as a bearer token.
	Credential string
}

// Response is returned to the caller. Usage and Month are relayed from the
// provider untouched and render as null when absent. RemainingCents is nil
// when the budget is unknown.
type Response struct {
	Reply          string          `json:"reply"`
	Usage          json.RawMessage `json:"usage"`
	Month          json.RawMessage `json:"month"`
	RemainingCents *float64        `json:"remaining_cents"`
}

// State is the per-request pipeline state. It is owned by a single
// goroutine.
type State struct {
	Request Request

	// Step is the last step that finished; empty before the first.
	Step    StepName
	Results []StepResult

	QueryEmbedding []float32
	Retrieved      retrieval.Context
	Recent         []conversation.Message
	Messages       []gateway.Message
	UserTurn       conversation.Turn
	Chat           gateway.ChatResponse
	Reply          string
	ReplyEmbedding []float32
	AssistantTurn  conversation.Turn
	Response       *Response
}

// NewState creates the state for req.
func NewState(req Request) *State {
	return &State{Request: req, Results: make([]StepResult, 0, len(AllSteps()))}
}

// Result returns the recorded result for step.
func (s *State) Result(step StepName) (StepResult, bool) {
	for _, r := range s.Results {
		if r.Step == step {
			return r, true
		}
	}
	return StepResult{}, false
}

// CanTransition checks that next directly follows the current step and
// that the current step finished without failing.
func (s *State) CanTransition(next StepName) error {
	steps := AllSteps()
	currentIdx, nextIdx := -1, -1
	for i, st := range steps {
		if st == s.Step {
			currentIdx = i
		}
		if st == next {
			nextIdx = i
		}
	}

	if nextIdx == -1 {
		return fmt.Errorf("invalid target step: %s", next)
	}
	if s.Step == "" {
		if nextIdx != 0 {
			return fmt.Errorf("cannot start at %s: must begin with %s", next, steps[0])
		}
		return nil
	}
	if currentIdx == -1 {
		return fmt.Errorf("invalid current step: %s", s.Step)
	}
	if nextIdx != currentIdx+1 {
		return fmt.Errorf("cannot transition from %s to %s: must follow sequential order", s.Step, next)
	}

	result, ok := s.Result(s.Step)
	if !ok || (result.Status != StatusCompleted && result.Status != StatusSkipped) {
		return fmt.Errorf("cannot transition: step %s not completed", s.Step)
	}
	return nil
}
