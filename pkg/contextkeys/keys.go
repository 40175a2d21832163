// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserIDKey contains the authenticated user ID string
	// Set by: middleware.Gate.VerifyToken (pkg/middleware/auth.go)
	// Required by: all protected API endpoints, role checks
	// Type: string
	UserIDKey Key = "user_id"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, request tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// UserIDCarrierKey contains *UserIDCarrier
	// Set by: middleware.RequestLogging, before the token gate runs
	// Filled by: middleware.Gate.VerifyToken
	// Type: *UserIDCarrier
	UserIDCarrierKey Key = "user_id_carrier"
)

// UserIDCarrier collects the authenticated user ID for middleware that
// runs outside the token gate. The logging middleware derives its
// context before the gate resolves the principal, so the gate writes
// the ID into the carrier instead of a context value the outer
// middleware could never see.
type UserIDCarrier struct {
	ID string
}

// WithUserID adds the authenticated user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithUserIDCarrier adds a user ID carrier to the context
func WithUserIDCarrier(ctx context.Context, c *UserIDCarrier) context.Context {
	return context.WithValue(ctx, UserIDCarrierKey, c)
}

// GetUserIDCarrier retrieves the user ID carrier from context, or nil
// when none was installed
func GetUserIDCarrier(ctx context.Context) *UserIDCarrier {
	if c, ok := ctx.Value(UserIDCarrierKey).(*UserIDCarrier); ok {
		return c
	}
	return nil
}

// GetUserID retrieves the authenticated user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
