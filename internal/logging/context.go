// internal/logging/context.go
package logging

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxFieldLen caps caller-supplied identifiers copied into log entries.
const maxFieldLen = 128

// Conversation identifies the (user, business, session) a request acts on.
type Conversation struct {
	UserID     string
	BusinessID string
	SessionID  string
}

type conversationCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	if conv := ConversationFromContext(ctx); conv != nil {
		fields = append(fields,
			zap.String("user.id", conv.UserID),
			zap.String("business.id", conv.BusinessID),
		)
		if conv.SessionID != "" {
			fields = append(fields, zap.String("session.id", conv.SessionID))
		}
	}

	return fields
}

// WithRequestID adds the request ID to context. Empty IDs are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, clip(requestID))
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithConversation adds the conversation identity to context.
func WithConversation(ctx context.Context, userID, businessID, sessionID string) context.Context {
	return context.WithValue(ctx, conversationCtxKey{}, &Conversation{
		UserID:     clip(userID),
		BusinessID: clip(businessID),
		SessionID:  clip(sessionID),
	})
}

// ConversationFromContext extracts the conversation identity from context.
func ConversationFromContext(ctx context.Context) *Conversation {
	if c, ok := ctx.Value(conversationCtxKey{}).(*Conversation); ok {
		return c
	}
	return nil
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}

// clip truncates s to maxFieldLen bytes without splitting a rune.
func clip(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	cut := maxFieldLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
