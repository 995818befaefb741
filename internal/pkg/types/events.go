package types

import (
	"context"
	"time"
)

// SessionBatch is the full ordered record set of one capture session,
// delivered to the streaming collaborator when the session ends.
type SessionBatch struct {
	SessionID string          `json:"sessionId"`
	Interface string          `json:"interface"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   time.Time       `json:"endedAt"`
	Records   []*PacketRecord `json:"records"`
}

// Publisher receives every record of a finished session.
type Publisher interface {
	Publish(ctx context.Context, batch SessionBatch) error
}

// FlaggedStore persists records that at least one detector flagged.
type FlaggedStore interface {
	InsertFlagged(ctx context.Context, records []*PacketRecord) error
	Close() error
}

// NoopPublisher discards batches.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, SessionBatch) error { return nil }
