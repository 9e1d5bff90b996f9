package eventlog

import (
	"context"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// Recorder returns an observer that appends every mesh event to log.
// Append errors (a closed log) are dropped; observers cannot fail.
func Recorder(log EventLog) meshnode.Observer {
	return meshnode.ObserverFunc(func(event meshnode.Event) {
		_, _ = log.Append(context.Background(), NewRecord(event))
	})
}
