// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a custom Trace level (-2, below Debug)
//   - stdout output plus an optional OpenTelemetry log bridge
//   - correlation fields pulled from context (trace, request, user, business, session)
//   - secret redaction in the encoder
//   - level-aware sampling (errors are never sampled)
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	ctx = logging.WithConversation(ctx, userID, businessID, sessionID)
//	logger.Info(ctx, "reply generated", zap.Int("reply_chars", n))
package logging
