package eventstream

import "context"

// Publisher publishes memory events to an event stream backend.
type Publisher interface {
	PublishMemoryUpdate(ctx context.Context, event *MemoryUpdatedEvent) error
	Close() error
}
