// Package eventlog provides interfaces for the chat history of a mesh node.
//
// This package defines the core abstractions for the history component:
//   - Record: one observed mesh event with its position in the log
//   - EventLog: interface for bounded append-only history (append, read, replay, statistics)
//   - Recorder: a meshnode.Observer that appends every event it sees
//
// The interfaces use Go idioms:
//   - context.Context for cancellation and timeouts
//   - Channels for async streaming (Replay method)
//   - io.Closer for resource cleanup
//   - Explicit error returns following Go conventions
//
// Offsets are assigned in append order starting from 0 and are never reused. A
// bounded log evicts its oldest records; reads below StartOffset simply begin at
// the oldest retained record.
//
// Example usage:
//
//	// Record everything a node observes
//	history := memlog.NewInMemoryEventLog(1000) // internal/eventlog
//	node, err := meshnode.NewTCPMeshNode(config, eventlog.Recorder(history))
//
//	// Read the 100 most recent records
//	end, _ := history.EndOffset(ctx)
//	records, err := history.Read(ctx, end-100, 100)
//
//	// Replay from offset 10
//	recordChan, errChan := history.Replay(ctx, 10)
//	for record := range recordChan {
//		process(record)
//	}
//	if err := <-errChan; err != nil {
//		return err
//	}
package eventlog
