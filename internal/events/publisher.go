package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/pkg/config"
	"github.com/swimbuddz/academy-api/pkg/jobs"
)

const jobTypeDomainEvent = "domain_event"

// Sink receives delivered domain events. In production this is the
// notifications client.
type Sink interface {
	Deliver(ctx context.Context, event models.Event) error
}

// Publisher delivers domain events asynchronously through a worker queue.
// Publish is fire-and-forget: a full buffer or a failing sink is logged and
// retried by the queue, but never surfaces to the state change that emitted
// the event.
type Publisher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewPublisher constructs a Publisher draining into the sink.
func NewPublisher(sink Sink, cfg config.EventsConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := jobs.NewQueue("domain-events", jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	queue.Register(jobTypeDomainEvent, func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.Event)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return sink.Deliver(ctx, event)
	})
	return &Publisher{queue: queue, logger: logger}
}

// Start launches the delivery workers.
func (p *Publisher) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Stop drains the workers.
func (p *Publisher) Stop() {
	p.queue.Stop()
}

// Publish enqueues one event for delivery.
func (p *Publisher) Publish(event models.Event) {
	err := p.queue.Enqueue(jobs.Job{
		ID:      event.ID,
		Type:    jobTypeDomainEvent,
		Payload: event,
	})
	if err != nil {
		p.logger.Warn("event dropped",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
