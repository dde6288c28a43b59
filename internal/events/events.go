// Package events carries counter changes between the counter service and any
// wall servers that want to push them to browsers.
package events

import "context"

// TopicClicked is published after every accepted increment with a
// models.ClickEvent payload.
const TopicClicked = "wall.clicked"

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
