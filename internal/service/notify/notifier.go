// Package notify delivers presence and lifecycle notifications out of band.
// Sends are queued and processed by a single consumer; a failed or dropped
// notification is logged and forgotten, never surfaced to chat.
package notify

import (
	"context"

	"github.com/understudybot/understudy/pkg/log"
)

// Sender delivers one notification. Implementations may block; the notifier
// calls them from its consumer goroutine only.
type Sender interface {
	Send(subject, body string) error
}

type notification struct {
	subject string
	body    string
}

// Notifier is a bounded fire-and-forget notification queue. Notify never
// blocks the caller.
type Notifier struct {
	sender Sender
	queue  chan notification
}

func New(sender Sender, size int) *Notifier {
	if size <= 0 {
		size = 32
	}
	return &Notifier{
		sender: sender,
		queue:  make(chan notification, size),
	}
}

// Notify enqueues a notification, dropping it when the queue is full.
func (n *Notifier) Notify(ctx context.Context) func(subject, body string) {
	return func(subject, body string) {
		select {
		case n.queue <- notification{subject: subject, body: body}:
		default:
			log.FromCtx(ctx).Warn().Str("subject", subject).Msg("notification queue full, dropping")
		}
	}
}

// Start consumes the queue until the context is cancelled.
func (n *Notifier) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-n.queue:
			if err := n.sender.Send(msg.subject, msg.body); err != nil {
				logger.Error().Err(err).Str("subject", msg.subject).Msg("failed to send notification")
				continue
			}
			logger.Debug().Str("subject", msg.subject).Msg("notification sent")
		}
	}
}

func (n *Notifier) Shutdown(ctx context.Context) error {
	return nil
}
