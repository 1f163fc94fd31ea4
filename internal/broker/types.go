package broker

import (
	"context"

	"siteaudit/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}

// QueueClient is the outbound queue used by audits to publish results.
// The queue URL names the destination topic.
type QueueClient interface {
	SendMessage(ctx context.Context, queueURL string, body interface{}) error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.AuditMessage) error
