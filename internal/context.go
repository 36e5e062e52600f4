package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextUserKey ctxKey = "userID"
const ContextHospitalKey ctxKey = "hospitalID"

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

func HospitalIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if hospitalID, ok := ctx.Value(ContextHospitalKey).(string); ok {
		return hospitalID
	}
	return ""
}

func ContextWithHospitalID(ctx context.Context, hospitalID string) context.Context {
	return context.WithValue(ctx, ContextHospitalKey, hospitalID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
