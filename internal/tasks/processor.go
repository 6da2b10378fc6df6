package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smartcampus/api/internal/mail"
	"smartcampus/api/internal/metrics"
	"smartcampus/api/internal/queue"
)

// Processor dispatches stream entries produced by the API process.
type Processor struct {
	mailer mail.Mailer
	logger zerolog.Logger
}

type TaskPayload struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewProcessor(mailer mail.Mailer, logger zerolog.Logger) *Processor {
	return &Processor{
		mailer: mailer,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return queue.Discard(fmt.Errorf("decode payload: %w", err))
	}

	switch payload.Type {
	case mail.TaskType:
		return p.handleMail(ctx, msg.ID, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleMail(ctx context.Context, id string, payload TaskPayload) error {
	err := p.mailer.Send(ctx, mail.Message{
		To:      payload.To,
		Subject: payload.Subject,
		Body:    payload.Body,
	})
	metrics.RecordMail("smtp", err)
	if err != nil {
		if mail.IsPermanent(err) {
			return queue.Discard(err)
		}
		return err
	}
	p.logger.Info().Str("message_id", id).Str("to", payload.To).Msg("mail delivered")
	return nil
}
