package eventlog

import (
	"context"
	"io"
)

// EventLog defines the interface for bounded append-only event history.
type EventLog interface {
	io.Closer

	// Append stores a record. The Offset is assigned by the log and set on the returned record.
	Append(ctx context.Context, record *Record) (*Record, error)

	// Read returns retained records starting at a given offset, up to a max count.
	Read(ctx context.Context, startOffset int64, maxCount int) ([]*Record, error)

	// StartOffset returns the offset of the oldest retained record.
	StartOffset(ctx context.Context) (int64, error)

	// EndOffset returns the next append position.
	EndOffset(ctx context.Context) (int64, error)

	// Replay streams retained records starting at a given offset via a channel.
	// The channel will be closed when all records are sent or context is cancelled.
	Replay(ctx context.Context, startOffset int64) (<-chan *Record, <-chan error)

	// GetStatistics returns overall statistics about the log.
	GetStatistics(ctx context.Context) (Statistics, error)
}

// Statistics provides aggregate statistics about the event log
type Statistics struct {
	TotalEvents int64            `json:"totalEvents"` // Total number of records ever appended
	Retained    int              `json:"retained"`    // Number of records currently held
	Evicted     int64            `json:"evicted"`     // Records dropped to respect capacity
	KindCounts  map[string]int64 `json:"kindCounts"`  // Number of records appended per event kind
	Capacity    int              `json:"capacity"`
}
