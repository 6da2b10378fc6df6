package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// QueueMailer hands messages to the mail worker through a Redis stream.
// Entries carry the message body, so the worker deletes them after delivery.
type QueueMailer struct {
	client redis.Cmdable
	stream string
}

func NewQueueMailer(client redis.Cmdable, stream string) *QueueMailer {
	return &QueueMailer{client: client, stream: stream}
}

func (q *QueueMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"type":    TaskType,
			"to":      msg.To,
			"subject": msg.Subject,
			"body":    msg.Body,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}
