package outbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultSendInterval is the pause after every dispatch attempt. Telegram
// throttles bots around 30 messages per second; pacing sends keeps the bot
// under that threshold without tracking per-chat budgets.
const DefaultSendInterval = time.Second / 30

// Sender delivers a single message over the chat transport.
type Sender interface {
	SendText(ctx context.Context, msg Text) error
	SendLocation(ctx context.Context, msg Location) error
	SendMediaGroup(ctx context.Context, msg MediaGroup) error
}

// FailureRecorder records a failed delivery attempt for later aggregation.
type FailureRecorder interface {
	RecordSendFailure(ctx context.Context, kind, errMsg string)
}

// Dispatcher is the queue's single consumer. Exactly one consumer drains
// the queue; that invariant is what guarantees per-chat ordering and makes
// the rate limit a simple sleep.
type Dispatcher struct {
	q        *Queue
	sender   Sender
	failures FailureRecorder
	logger   *slog.Logger
	interval time.Duration
}

// NewDispatcher creates a dispatcher draining q, delivering through sender
// and recording send failures with failures. A non-positive interval falls
// back to DefaultSendInterval.
func NewDispatcher(q *Queue, sender Sender, failures FailureRecorder, interval time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	return &Dispatcher{
		q:        q,
		sender:   sender,
		failures: failures,
		logger:   logger.With("component", "outbox"),
		interval: interval,
	}
}

// Run consumes the queue until ctx is cancelled. A failed send is recorded
// and skipped; it is never retried inline and never stops the loop. After
// every attempt, successful or not, the loop pauses for the send interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Outbound dispatcher started", "send_interval", d.interval)

	for {
		msg, err := d.q.pop(ctx)
		if err != nil {
			d.logger.Info("Outbound dispatcher stopped", "pending", d.q.Len())
			return err
		}

		if sendErr := d.send(ctx, msg); sendErr != nil {
			d.logger.ErrorContext(ctx, "Send failed", "kind", msg.Kind(), "error", sendErr)
			if d.failures != nil {
				d.failures.RecordSendFailure(ctx, msg.Kind(), sendErr.Error())
			}
		}

		select {
		case <-ctx.Done():
			d.logger.Info("Outbound dispatcher stopped", "pending", d.q.Len())
			return ctx.Err()
		case <-time.After(d.interval):
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	switch m := msg.(type) {
	case Text:
		return d.sender.SendText(ctx, m)
	case Location:
		return d.sender.SendLocation(ctx, m)
	case MediaGroup:
		return d.sender.SendMediaGroup(ctx, m)
	default:
		// Unreachable while Message stays sealed.
		return fmt.Errorf("unknown message kind %q", msg.Kind())
	}
}
