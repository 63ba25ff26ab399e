package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/triagedesk/pkg/models"
)

// ErrNotFound is returned by Source.FetchByID when no record exists for the
// given id. A pushed id that resolves to ErrNotFound is silently skipped.
var ErrNotFound = errors.New("call record not found")

// Source is the datastore surface the feed consumes. Implementations must be
// safe for concurrent use; the feed issues fetches from multiple goroutines.
type Source interface {
	// SubscribeInserts opens a push subscription for newly inserted record
	// ids. Delivery is at-most-once per event: events may be silently
	// dropped (the polling backstop corrects for that) and may arrive as
	// duplicates (the merge is idempotent).
	SubscribeInserts(ctx context.Context) (InsertStream, error)

	// FetchByID resolves a record id to a full record, or ErrNotFound.
	FetchByID(ctx context.Context, id string) (models.CallRecord, error)

	// FetchOrdered returns at most limit records, newest first by creation
	// time. The feed re-sorts by risk tier regardless.
	FetchOrdered(ctx context.Context, limit int) ([]models.CallRecord, error)
}

// InsertStream is a live insert subscription.
type InsertStream interface {
	// Ready is closed once the subscription is acknowledged by the server.
	Ready() <-chan struct{}

	// Inserts delivers the ids of newly inserted records.
	Inserts() <-chan string

	// Err delivers a terminal subscription failure. After the first error
	// the feed stops trusting the push channel for the rest of the session.
	Err() <-chan error

	Close() error
}

// FetchError wraps a failed snapshot or id-resolution query. Fetch failures
// are never fatal to the feed: state is left unchanged and the next
// scheduled poll retries.
type FetchError struct {
	Op  string // "snapshot" or "resolve"
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed %s fetch failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
