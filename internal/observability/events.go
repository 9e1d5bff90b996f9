package observability

import (
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// EventLogger is a meshnode.Observer that writes every mesh event to a logger.
// Messages are logged at Debug so chat text stays out of production logs.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger creates an EventLogger; a nil logger discards everything
func NewEventLogger(logger *zap.Logger) *EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogger{logger: logger.Named("events")}
}

// HandleEvent implements meshnode.Observer
func (l *EventLogger) HandleEvent(event meshnode.Event) {
	fields := []zap.Field{
		zap.Stringer("kind", event.Kind),
		zap.Stringer("peer", event.Peer),
	}

	switch event.Kind {
	case meshnode.EventMessage:
		l.logger.Debug("message", append(fields, zap.String("text", event.Payload))...)
	case meshnode.EventError:
		l.logger.Warn("peer error", append(fields, zap.String("error", event.Payload))...)
	case meshnode.EventConnect:
		l.logger.Info("peer connected", fields...)
	case meshnode.EventDisconnect:
		l.logger.Info("peer disconnected", fields...)
	}
}

var _ meshnode.Observer = (*EventLogger)(nil)
