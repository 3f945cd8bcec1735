// Package service holds the small set of cross-cutting collaborator
// interfaces the scheduler's engines depend on but don't implement
// themselves.
package service

import (
	"context"
	"time"

	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// Logger abstracts structured logging operations.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)

	// With returns a new logger with the given key-value pairs.
	With(args ...any) Logger

	// WithContext returns a new logger with context.
	WithContext(ctx context.Context) Logger
}

// Clock abstracts wall-clock time so the claim/completion engines' use of
// "now" is injectable in tests.
type Clock interface {
	Now() time.Time
}

// ClaimNotifier announces that the task taskID of the given run type has
// just completed, which may have made other tasks claimable, so a worker
// long-polling claim_service/claim_user
// can wake immediately instead of busy-polling. Implementations must
// not block or fail the caller on delivery failure.
type ClaimNotifier interface {
	NotifyClaimAvailable(ctx context.Context, runType valueobject.RunType, taskID string)
}
