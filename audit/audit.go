/*
Package audit records who did what, when, across the tracker's entities.

The trail is best-effort by design: a failed audit write is logged and
swallowed, never escalated to the mutation that triggered it. Balance
consistency does not depend on the audit log.
*/
package audit

import (
	"context"
	"time"
)

// Action classifies an audited mutation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionEdit   Action = "EDIT"
	ActionDelete Action = "DELETE"
)

// Record is one audit trail row.
type Record struct {
	ID          string
	ActorID     string
	ActorName   string
	Action      Action
	Table       string // affected table: "entries", "accounts", "categories"
	RecordID    string
	Description string
	CreatedAt   time.Time
}

// Recorder accepts audit records. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Log is the read side of the trail.
type Log interface {
	Recorder

	// List returns the newest records first, at most limit rows.
	List(ctx context.Context, limit int) ([]Record, error)

	// ListByActor returns one actor's records, newest first.
	ListByActor(ctx context.Context, actorID string) ([]Record, error)
}

// Discard is a Recorder that drops every record. Useful when auditing is
// disabled and in tests.
type Discard struct{}

func (Discard) Record(context.Context, Record) error { return nil }
