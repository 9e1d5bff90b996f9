package eventlog

import (
	"context"
	"errors"
	"sync"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 1000

var (
	// ErrNegativeOffset is returned when a negative offset is provided
	ErrNegativeOffset = errors.New("offset cannot be negative")
	// ErrNegativeMaxCount is returned when a negative max count is provided
	ErrNegativeMaxCount = errors.New("max count cannot be negative")
	// ErrNilRecord is returned when a nil record is provided
	ErrNilRecord = errors.New("record cannot be nil")
	// ErrClosed is returned by operations on a closed log
	ErrClosed = errors.New("event log is closed")
)

// InMemoryEventLog implements the eventlog.EventLog interface with a bounded in-memory buffer.
// Once capacity is reached the oldest record is evicted for every append.
// It is safe for concurrent use.
type InMemoryEventLog struct {
	mu         sync.RWMutex
	capacity   int
	records    []*eventlog.Record // oldest first, offsets contiguous
	nextOffset int64
	kindCounts map[string]int64
	evicted    int64
	closed     bool
}

// NewInMemoryEventLog creates a new bounded in-memory event log.
func NewInMemoryEventLog(capacity int) *InMemoryEventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryEventLog{
		capacity:   capacity,
		records:    make([]*eventlog.Record, 0, min(capacity, 256)),
		kindCounts: make(map[string]int64),
	}
}

// Append stores a record and assigns its offset.
func (log *InMemoryEventLog) Append(ctx context.Context, record *eventlog.Record) (*eventlog.Record, error) {
	if record == nil {
		return nil, ErrNilRecord
	}

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	if log.closed {
		return nil, ErrClosed
	}

	stored := record.WithOffset(log.nextOffset)
	log.nextOffset++
	log.kindCounts[stored.Kind]++

	if len(log.records) == log.capacity {
		log.records[0] = nil
		log.records = log.records[1:]
		log.evicted++
	}
	log.records = append(log.records, stored)

	return stored, nil
}

// Read returns retained records starting at a given offset, up to a max count.
// An offset below the oldest retained record starts at the oldest one.
func (log *InMemoryEventLog) Read(ctx context.Context, startOffset int64, maxCount int) ([]*eventlog.Record, error) {
	if startOffset < 0 {
		return nil, ErrNegativeOffset
	}
	if maxCount < 0 {
		return nil, ErrNegativeMaxCount
	}

	// Check if context is cancelled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	if log.closed {
		return nil, ErrClosed
	}

	window := log.fromLocked(startOffset)
	if len(window) > maxCount {
		window = window[:maxCount]
	}

	results := make([]*eventlog.Record, len(window))
	copy(results, window)
	return results, nil
}

// StartOffset returns the offset of the oldest retained record
func (log *InMemoryEventLog) StartOffset(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	if log.closed {
		return 0, ErrClosed
	}
	return log.nextOffset - int64(len(log.records)), nil
}

// EndOffset returns the next append position
func (log *InMemoryEventLog) EndOffset(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	if log.closed {
		return 0, ErrClosed
	}
	return log.nextOffset, nil
}

// Replay streams retained records starting at a given offset via a channel.
// The channel will be closed when all records are sent or context is cancelled.
func (log *InMemoryEventLog) Replay(ctx context.Context, startOffset int64) (<-chan *eventlog.Record, <-chan error) {
	recordChan := make(chan *eventlog.Record)
	errChan := make(chan error, 1) // Buffered to prevent blocking

	go func() {
		defer close(recordChan)
		defer close(errChan)

		if startOffset < 0 {
			errChan <- ErrNegativeOffset
			return
		}

		// Copy the window to avoid holding the lock during delivery
		log.mu.RLock()
		if log.closed {
			log.mu.RUnlock()
			errChan <- ErrClosed
			return
		}
		toReplay := append([]*eventlog.Record(nil), log.fromLocked(startOffset)...)
		log.mu.RUnlock()

		for _, record := range toReplay {
			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			case recordChan <- record:
			}
		}
	}()

	return recordChan, errChan
}

// GetStatistics returns overall statistics about the log
func (log *InMemoryEventLog) GetStatistics(ctx context.Context) (eventlog.Statistics, error) {
	select {
	case <-ctx.Done():
		return eventlog.Statistics{}, ctx.Err()
	default:
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	kindCounts := make(map[string]int64, len(log.kindCounts))
	for kind, count := range log.kindCounts {
		kindCounts[kind] = count
	}

	return eventlog.Statistics{
		TotalEvents: log.nextOffset,
		Retained:    len(log.records),
		Evicted:     log.evicted,
		KindCounts:  kindCounts,
		Capacity:    log.capacity,
	}, nil
}

// Close closes the event log and drops all records.
func (log *InMemoryEventLog) Close() error {
	log.mu.Lock()
	defer log.mu.Unlock()

	if log.closed {
		return nil // Already closed, idempotent
	}

	log.records = nil
	log.closed = true
	return nil
}

// fromLocked returns the retained records at or after startOffset; mu must be held
func (log *InMemoryEventLog) fromLocked(startOffset int64) []*eventlog.Record {
	first := log.nextOffset - int64(len(log.records))
	if startOffset <= first {
		return log.records
	}
	if startOffset >= log.nextOffset {
		return nil
	}
	return log.records[startOffset-first:]
}

// Verify that InMemoryEventLog implements the EventLog interface at compile time
var _ eventlog.EventLog = (*InMemoryEventLog)(nil)
