package events

import "context"

// NoopPublisher discards closings. The recorder falls back to it when no bus
// or stream is wired.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
