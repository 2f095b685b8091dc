package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for the phone number.
var ErrNotFound = errors.New("directory: record not found")

// Directory is the user state store consumed by the dispatcher and the
// scheduler. Mutations on an absent record (other than UpsertDefault) are
// no-ops: the dispatcher primes every sender with UpsertDefault before
// touching anything else.
type Directory interface {
	// Get returns the record for the phone number or ErrNotFound.
	Get(ctx context.Context, phone string) (Record, error)

	// UpsertDefault creates a record with language "en", unsubscribed and an
	// empty activity log when absent. It reports whether the record was newly
	// created, which drives the welcome message.
	UpsertDefault(ctx context.Context, phone string) (bool, error)

	// SetLanguage stores the reply language preference.
	SetLanguage(ctx context.Context, phone string, lang Language) error

	// Subscribe marks the user for scheduled alerts for the given city. The
	// city must be non-empty.
	Subscribe(ctx context.Context, phone, city string) error

	// Unsubscribe clears the subscription flag and city, keeping language and
	// activity log. It is idempotent.
	Unsubscribe(ctx context.Context, phone string) error

	// AppendActivity appends one activity note, preserving insertion order.
	AppendActivity(ctx context.Context, phone, text string) error

	// ClearActivities empties the activity log.
	ClearActivities(ctx context.Context, phone string) error

	// Subscribers returns a snapshot of phone→city for all subscribed users.
	Subscribers(ctx context.Context) (map[string]string, error)

	// CountSubscribed returns the number of subscribed users.
	CountSubscribed(ctx context.Context) (int64, error)

	// Ping reports backend reachability for health checks.
	Ping(ctx context.Context) error
}
