package gateway

import (
	"bytes"
	"encoding/json"
)

// Embedding task intents understood by the provider.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Message is one chat message sent to the generation provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmbedRequest is the body posted to the embed endpoint.
type EmbedRequest struct {
	Provider             string `json:"provider"`
	Model                string `json:"model"`
	Input                string `json:"input"`
	TaskType             string `json:"taskType"`
	Title                string `json:"title,omitempty"`
	OutputDimensionality int    `json:"outputDimensionality,omitempty"`
}

// EmbedResponse is the parsed embed reply. Embedding is nil when the
// provider answered 2xx without a usable vector.
type EmbedResponse struct {
	Embedding []float32
	Raw       json.RawMessage
}

type embedWire struct {
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
}

// vector prefers embeddings[0] and falls back to embedding.
func (w embedWire) vector() []float32 {
	if len(w.Embeddings) > 0 && len(w.Embeddings[0]) > 0 {
		return w.Embeddings[0]
	}
	if len(w.Embedding) > 0 {
		return w.Embedding
	}
	return nil
}

// ChatRequest is the body posted to the chat endpoint.
type ChatRequest struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse is the parsed chat reply. Usage and Month are relayed to
// the caller untouched; they are nil when the provider omitted them.
type ChatResponse struct {
	OutputText string
	Usage      json.RawMessage
	Month      json.RawMessage
	Raw        json.RawMessage
}

type chatWire struct {
	OutputText json.RawMessage `json:"output_text"`
	Usage      json.RawMessage `json:"usage"`
	Month      json.RawMessage `json:"month"`
}

// RemainingCents returns max(0, cap_cents - spent_cents) when month holds
// both figures as JSON numbers, and nil otherwise. Nil means the budget is
// unknown.
func (r ChatResponse) RemainingCents() *float64 {
	if len(r.Month) == 0 {
		return nil
	}
	var month map[string]json.RawMessage
	if err := json.Unmarshal(r.Month, &month); err != nil {
		return nil
	}
	capCents, ok := jsonNumber(month["cap_cents"])
	if !ok {
		return nil
	}
	spent, ok := jsonNumber(month["spent_cents"])
	if !ok {
		return nil
	}
	remaining := capCents - spent
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// jsonNumber decodes raw only when it is a JSON number literal, so quoted
// numbers and nulls are rejected.
func jsonNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// relay drops absent and falsy values the way the provider contract treats
// them: missing, null, false, 0 and "" all become nil.
func relay(raw json.RawMessage) json.RawMessage {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return nil
	}
	return raw
}

// text returns raw as a string when it is a JSON string, else "".
func text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

type errorWire struct {
	Error json.RawMessage `json:"error"`
}
