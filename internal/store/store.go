// Package store provides the shared sender-state storage used for duplicate
// message tracking. Records are keyed by sender ID and survive process
// restarts when backed by redis.
package store

import (
	"context"
	"fmt"
)

// Record holds the moderation state for a single sender.
type Record struct {
	Fingerprint string // digest of the sender's most recent message body
	Count       int64  // consecutive messages matching Fingerprint, >= 1
}

// SenderStore is the per-sender key-value store behind the duplicate limiter.
// All operations are atomic per sender key.
type SenderStore interface {
	// Observe records the fingerprint of a sender's latest message:
	// no record → create {fingerprint, 1} and report (false, 1);
	// same fingerprint → report (true, count) without modifying the record;
	// different fingerprint → reset to {fingerprint, 1} and report (false, 1).
	Observe(ctx context.Context, senderID, fingerprint string) (repeat bool, count int64, err error)

	// Increment raises the stored count by one and returns the new value.
	// A missing record is left absent and reported as count 0.
	Increment(ctx context.Context, senderID string) (int64, error)

	// Delete clears the sender's record. Deleting a missing record is a no-op.
	Delete(ctx context.Context, senderID string) error

	Close() error
}

// StoreError wraps failures talking to the backing store. Callers treat it as
// a signal to skip duplicate evaluation for the message, never as fatal.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sender store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
