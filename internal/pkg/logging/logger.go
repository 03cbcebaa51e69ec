// Package logging defines the structured logger used across safepath.
//
// Call sites pass key/value pairs:
//
//	log.Info(ctx, "session rotated", "user_id", userID)
//
// Secrets, tokens and passwords are never passed as values. Use Mask
// or a hash when a log line has to reference one.
package logging

import "context"

type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
