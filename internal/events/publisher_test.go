package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/pkg/config"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []models.Event
	failFirst bool
	failures  int
}

func (s *recordingSink) Deliver(ctx context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst && s.failures == 0 {
		s.failures++
		return errors.New("downstream unavailable")
	}
	s.delivered = append(s.delivered, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func TestPublisherDeliversEvents(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(sink, config.EventsConfig{Workers: 1, BufferSize: 8}, nil)
	pub.Start(context.Background())
	defer pub.Stop()

	pub.Publish(models.Event{ID: "ev-1", Type: models.EventEnrollmentPromoted, OccurredAt: time.Now().UTC()})
	pub.Publish(models.Event{ID: "ev-2", Type: models.EventPayoutComputed, OccurredAt: time.Now().UTC()})

	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublisherRetriesFailedDelivery(t *testing.T) {
	sink := &recordingSink{failFirst: true}
	pub := NewPublisher(sink, config.EventsConfig{Workers: 1, BufferSize: 8, MaxRetries: 3}, nil)
	pub.Start(context.Background())
	defer pub.Stop()

	pub.Publish(models.Event{ID: "ev-1", Type: models.EventCohortCancelled, OccurredAt: time.Now().UTC()})

	require.Eventually(t, func() bool { return sink.count() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestPublishBeforeStartDoesNotPanic(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher(sink, config.EventsConfig{}, nil)

	// The queue is not started; the event is dropped with a log line.
	pub.Publish(models.Event{ID: "ev-1", Type: models.EventEnrollmentPromoted})
	require.Equal(t, 0, sink.count())
}
