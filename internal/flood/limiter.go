// Package flood provides duplicate-message flood detection for chat rooms.
package flood

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"roomwarden/internal/store"
)

// Result is the outcome of a duplicate check.
type Result struct {
	Repeat bool  // the message body matches the sender's previous message
	Count  int64 // ordinal of this message within the identical run (1 = first)
}

// Limiter detects consecutive duplicate messages per sender. It only reads
// and resets sender records; the escalation writes (Confirm, Clear) are
// driven by the moderation policy so the limiter never crosses the repeat
// threshold on its own.
type Limiter struct {
	store  store.SenderStore
	logger *zap.Logger
}

// New creates a duplicate limiter on top of the shared sender store.
func New(senderStore store.SenderStore, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  senderStore,
		logger: logger,
	}
}

// Check reports whether body repeats the sender's previous message and how
// many times in a row it has now been sent. A first-time or differing body
// resets the sender's record to count 1.
func (l *Limiter) Check(ctx context.Context, senderID, body string) (Result, error) {
	repeat, count, err := l.store.Observe(ctx, senderID, Fingerprint(body))
	if err != nil {
		return Result{}, err
	}
	if !repeat {
		return Result{Repeat: false, Count: 1}, nil
	}
	l.logger.Debug("Duplicate message detected",
		zap.String("sender", senderID),
		zap.Int64("occurrence", count+1))
	// The stored count is the previous run length; this message is one more.
	return Result{Repeat: true, Count: count + 1}, nil
}

// Confirm persists the repeat counted by the last Check. Called by the policy
// after it warned the sender.
func (l *Limiter) Confirm(ctx context.Context, senderID string) error {
	_, err := l.store.Increment(ctx, senderID)
	return err
}

// Clear removes the sender's record after a severe escalation fired, so the
// next identical message starts a fresh run.
func (l *Limiter) Clear(ctx context.Context, senderID string) error {
	return l.store.Delete(ctx, senderID)
}

// Fingerprint returns the stable digest used for exact-match duplicate
// comparison of message bodies.
func Fingerprint(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
