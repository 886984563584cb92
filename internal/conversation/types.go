package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role a turn may carry.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

var (
	// ErrInvalidTurn indicates a turn missing its owner or carrying an unknown role.
	ErrInvalidTurn = errors.New("invalid conversation turn")
)

// Turn is one persisted chat message.
type Turn struct {
	ID         string
	UserID     string
	BusinessID string
	SessionID  string // empty when the caller sent none
	Role       Role
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// Validate checks that the turn belongs to exactly one (user, business)
// pair and has a known role.
func (t Turn) Validate() error {
	if t.UserID == "" || t.BusinessID == "" {
		return fmt.Errorf("%w: user and business ids required", ErrInvalidTurn)
	}
	if !t.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, t.Role)
	}
	return nil
}

// Render formats the turn as "<ROLE>: <content>".
func (t Turn) Render() string {
	return strings.ToUpper(string(t.Role)) + ": " + t.Content
}

// Message is a turn reduced to what a chat request needs.
type Message struct {
	Role    Role
	Content string
}

// Messages converts turns to chat messages, preserving order.
func Messages(turns []Turn) []Message {
	out := make([]Message, len(turns))
	for i, t := range turns {
		out[i] = Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// RenderAll renders each turn and joins them with newlines.
func RenderAll(turns []Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Render()
	}
	return strings.Join(lines, "\n")
}

// Store is the append-only turn log.
type Store interface {
	// Append persists turn and returns it with ID and CreatedAt assigned
	// when they were empty.
	Append(ctx context.Context, turn Turn) (Turn, error)

	// Recent returns up to limit of the newest turns for the pair,
	// in chronological order.
	Recent(ctx context.Context, userID, businessID string, limit int) ([]Turn, error)

	// Similar returns up to limit of the pair's turns that have an
	// embedding, nearest to query first.
	Similar(ctx context.Context, userID, businessID string, query []float32, limit int) ([]Turn, error)
}
