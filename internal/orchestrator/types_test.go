package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_CanTransition(t *testing.T) {
	s := NewState(Request{})

	assert.NoError(t, s.CanTransition(StepValidateRequest))
	assert.Error(t, s.CanTransition(StepEncodeQuery), "must start at the first step")
	assert.Error(t, s.CanTransition("bogus"))

	s.Step = StepValidateRequest
	s.Results = append(s.Results, StepResult{Step: StepValidateRequest, Status: StatusCompleted})
	assert.NoError(t, s.CanTransition(StepEncodeQuery))
	assert.Error(t, s.CanTransition(StepRetrieve), "cannot skip a step")
	assert.Error(t, s.CanTransition(StepValidateRequest), "cannot go backwards")

	s.Step = StepEncodeQuery
	s.Results = append(s.Results, StepResult{Step: StepEncodeQuery, Status: StatusFailed})
	assert.Error(t, s.CanTransition(StepRetrieve), "failed step blocks progress")

	s.Step = StepEncodeReply
	s.Results = append(s.Results, StepResult{Step: StepEncodeReply, Status: StatusSkipped})
	assert.NoError(t, s.CanTransition(StepPersistAssistantTurn))
}

func TestAllSteps(t *testing.T) {
	steps := AllSteps()
	assert.Len(t, steps, 11)
	assert.Equal(t, StepValidateRequest, steps[0])
	assert.Equal(t, StepReportBudget, steps[len(steps)-1])
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.TopKUser)
	assert.Equal(t, 8, cfg.TopKDocs)
	assert.Equal(t, 10, cfg.ThreadLimit)
	assert.Equal(t, 4500, cfg.ReplyEmbedMaxChars)
	assert.True(t, cfg.EmbedReplies)

	cfg.TopKDocs = -1
	assert.Error(t, cfg.Validate())
}
