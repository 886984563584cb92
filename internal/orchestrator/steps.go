package orchestrator

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragbrain/internal/conversation"
	"github.com/fyrsmithlabs/ragbrain/internal/gateway"
	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

// Caller-facing messages.
const (
	msgRequiredFields = "Required fields: userId, businessId, message"
	msgMissingOutput  = "Gateway response missing output_text"
	embedFailed       = "Embedding failed"
	chatFailed        = "Chat failed"
	replyEmbedTitle   = "Assistant message"
)

func (p *Pipeline) defaultSteps() []Step {
	return []Step{
		{StepValidateRequest, p.validateRequest},
		{StepEncodeQuery, p.encodeQuery},
		{StepRetrieve, p.retrieve},
		{StepLoadRecentMessages, p.loadRecentMessages},
		{StepAssembleRequest, p.assembleRequest},
		{StepPersistUserTurn, p.persistUserTurn},
		{StepGenerate, p.generate},
		{StepValidateReply, p.validateReply},
		{StepEncodeReply, p.encodeReply},
		{StepPersistAssistantTurn, p.persistAssistantTurn},
		{StepReportBudget, p.reportBudget},
	}
}

func (p *Pipeline) validateRequest(_ context.Context, s *State) error {
	r := &s.Request
	r.UserID = strings.TrimSpace(r.UserID)
	r.BusinessID = strings.TrimSpace(r.BusinessID)
	r.Message = strings.TrimSpace(r.Message)
	if r.UserID == "" || r.BusinessID == "" || r.Message == "" {
		return v1.Validation(msgRequiredFields)
	}
	return nil
}

func (p *Pipeline) embedRequest(input, task, title string) gateway.EmbedRequest {
	return gateway.EmbedRequest{
		Provider:             p.config.Embed.Provider,
		Model:                p.config.Embed.Model,
		Input:                input,
		TaskType:             task,
		Title:                title,
		OutputDimensionality: p.config.Embed.Dimension,
	}
}

func (p *Pipeline) encodeQuery(ctx context.Context, s *State) error {
	res := p.gateway.Embed(ctx, s.Request.Credential,
		p.embedRequest(s.Request.Message, gateway.TaskRetrievalQuery, ""))
	if !res.OK() {
		return gateway.APIError(embedFailed, res.Status, res.Err)
	}
	s.QueryEmbedding = res.Value.Embedding
	if s.QueryEmbedding == nil {
		p.logger.Debug(ctx, "embedding response carried no vector")
	}
	return nil
}

func (p *Pipeline) retrieve(ctx context.Context, s *State) error {
	r := s.Request
	rc, err := p.retriever.RetrieveHybrid(ctx, r.UserID, r.BusinessID, s.QueryEmbedding, p.config.TopKUser, p.config.TopKDocs)
	if err != nil {
		return v1.Internal("retrieval failed", err)
	}
	s.Retrieved = rc
	return nil
}

func (p *Pipeline) loadRecentMessages(ctx context.Context, s *State) error {
	if p.config.ThreadLimit <= 0 {
		s.Recent = []conversation.Message{}
		return nil
	}
	turns, err := p.turns.Recent(ctx, s.Request.UserID, s.Request.BusinessID, p.config.ThreadLimit)
	if err != nil {
		return v1.Internal("loading recent messages failed", err)
	}
	s.Recent = conversation.Messages(turns)
	return nil
}

func (p *Pipeline) assembleRequest(_ context.Context, s *State) error {
	msgs := make([]gateway.Message, 0, len(s.Recent)+3)
	msgs = append(msgs,
		gateway.Message{Role: "system", Content: p.config.SystemPrompt},
		gateway.Message{Role: "system", Content: p.assembler.Build(s.Retrieved)},
	)
	for _, m := range s.Recent {
		msgs = append(msgs, gateway.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, gateway.Message{Role: string(conversation.RoleUser), Content: s.Request.Message})
	s.Messages = msgs
	return nil
}

func (p *Pipeline) persistUserTurn(ctx context.Context, s *State) error {
	t, err := p.turns.Append(ctx, p.turn(s, conversation.RoleUser, s.Request.Message, s.QueryEmbedding))
	if err != nil {
		return v1.Internal("storing user message failed", err)
	}
	s.UserTurn = t
	return nil
}

func (p *Pipeline) generate(ctx context.Context, s *State) error {
	res := p.gateway.Generate(ctx, s.Request.Credential, gateway.ChatRequest{
		Provider:    p.config.Chat.Provider,
		Model:       p.config.Chat.Model,
		Messages:    s.Messages,
		MaxTokens:   p.config.Chat.MaxTokens,
		Temperature: p.config.Chat.Temperature,
	})
	if !res.OK() {
		return gateway.APIError(chatFailed, res.Status, res.Err)
	}
	s.Chat = res.Value
	return nil
}

func (p *Pipeline) validateReply(_ context.Context, s *State) error {
	s.Reply = strings.TrimSpace(s.Chat.OutputText)
	if s.Reply == "" {
		return v1.Upstream(0, msgMissingOutput, nil)
	}
	return nil
}

// encodeReply never fails the request.
func (p *Pipeline) encodeReply(ctx context.Context, s *State) error {
	if !p.config.EmbedReplies || utf8.RuneCountInString(s.Reply) > p.config.ReplyEmbedMaxChars {
		return errSkipped
	}
	res := p.gateway.Embed(ctx, s.Request.Credential,
		p.embedRequest(s.Reply, gateway.TaskRetrievalDocument, replyEmbedTitle))
	if !res.OK() {
		p.logger.Warn(ctx, "reply embedding failed",
			zap.Int("status", res.Status),
			zap.Error(res.Err))
		return nil
	}
	s.ReplyEmbedding = res.Value.Embedding
	return nil
}

func (p *Pipeline) persistAssistantTurn(ctx context.Context, s *State) error {
	t, err := p.turns.Append(ctx, p.turn(s, conversation.RoleAssistant, s.Reply, s.ReplyEmbedding))
	if err != nil {
		return v1.Internal("storing assistant message failed", err)
	}
	s.AssistantTurn = t
	return nil
}

func (p *Pipeline) reportBudget(_ context.Context, s *State) error {
	s.Response = &Response{
		Reply:          s.Reply,
		Usage:          s.Chat.Usage,
		Month:          s.Chat.Month,
		RemainingCents: s.Chat.RemainingCents(),
	}
	return nil
}

func (p *Pipeline) turn(s *State, role conversation.Role, content string, emb []float32) conversation.Turn {
	return conversation.Turn{
		UserID:     s.Request.UserID,
		BusinessID: s.Request.BusinessID,
		SessionID:  s.Request.SessionID,
		Role:       role,
		Content:    content,
		Embedding:  emb,
	}
}
