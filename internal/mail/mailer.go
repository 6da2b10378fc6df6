package mail

import (
	"context"
	"errors"
	"strings"
)

// TaskType tags outbound-mail entries on the Redis stream.
const TaskType = "mail"

var (
	ErrNoRecipient = errors.New("mail: message has no recipient")
	ErrBadAddress  = errors.New("mail: malformed recipient address")
)

type Message struct {
	To      string
	Subject string
	Body    string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
