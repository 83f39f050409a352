package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/FanyNavas/Sentara.Api/internal/apperr"
	"github.com/FanyNavas/Sentara.Api/internal/metrics"
	"github.com/FanyNavas/Sentara.Api/internal/queue"
)

// MessageType tags notification jobs on the queue.
const MessageType = "notification"

// QueueNotifier hands messages to a queue instead of sending them inline.
type QueueNotifier struct {
	q queue.Queue
}

func NewQueueNotifier(q queue.Queue) *QueueNotifier {
	return &QueueNotifier{q: q}
}

// Send publishes msg. Only a failure to enqueue is reported.
func (n *QueueNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return apperr.Notification("encode notification", err)
	}
	if err := n.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		return apperr.Notification("enqueue notification", err)
	}
	return nil
}

// Dispatcher drains notification jobs from a queue into a Notifier.
type Dispatcher struct {
	Queue    queue.Queue
	Notifier Notifier
	Logger   *log.Logger

	// Timeout bounds each send. Defaults to 15s.
	Timeout time.Duration
}

// Run blocks until ctx is done or the queue closes, then sends whatever the
// queue can still hand back. Each send gets its own deadline and is not cut
// short by ctx. Send failures are logged and the job is dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	msgs, err := d.Queue.Consume(ctx)
	if err != nil {
		return err
	}
	for qm := range msgs {
		d.handle(ctx, qm)
	}

	if dr, ok := d.Queue.(queue.Drainer); ok {
		rest := dr.Drain()
		if len(rest) > 0 {
			d.logger().Printf("draining %d queued notifications", len(rest))
		}
		for _, qm := range rest {
			d.handle(ctx, qm)
		}
	}
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, qm queue.Message) {
	if qm.Type != MessageType {
		return
	}
	logger := d.logger()

	var msg Message
	if err := json.Unmarshal(qm.Body, &msg); err != nil {
		logger.Printf("ERROR: drop malformed notification: %v", err)
		return
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	err := d.Notifier.Send(sendCtx, msg)
	metrics.Notification(metrics.KindDispatched, time.Since(start), err)
	if err != nil {
		logger.Printf("ERROR: notification to %s failed: %v", msg.To, err)
		return
	}
	logger.Printf("notification sent to %s (%s)", msg.To, msg.Subject)
}

func (d *Dispatcher) logger() *log.Logger {
	if d.Logger == nil {
		return log.Default()
	}
	return d.Logger
}
