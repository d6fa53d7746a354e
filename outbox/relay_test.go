package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/outbox"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSource struct {
	mu      sync.Mutex
	events  []pos.OutboxEvent
	loadErr error
}

func (s *fakeSource) add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		id := len(s.events) + 1
		s.events = append(s.events, pos.OutboxEvent{
			ID:          "evt-" + string(rune('a'+id-1)),
			Type:        pos.EventSaleCompleted,
			AggregateID: "txn-1",
			Payload:     json.RawMessage(`{}`),
			Status:      pos.OutboxPending,
		})
	}
}

func (s *fakeSource) PendingOutbox(_ context.Context, limit int) ([]pos.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []pos.OutboxEvent
	for _, e := range s.events {
		if e.Status == pos.OutboxPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeSource) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		e := s.find(id)
		e.Status = pos.OutboxPublished
		e.Attempts++
	}
	return nil
}

func (s *fakeSource) MarkFailed(_ context.Context, id string, cause error, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.find(id)
	e.Attempts++
	e.LastError = cause.Error()
	if e.Attempts >= maxAttempts {
		e.Status = pos.OutboxFailed
	}
	return nil
}

func (s *fakeSource) find(id string) *pos.OutboxEvent {
	for i := range s.events {
		if s.events[i].ID == id {
			return &s.events[i]
		}
	}
	panic("unknown event " + id)
}

func (s *fakeSource) statuses() map[pos.OutboxStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[pos.OutboxStatus]int{}
	for _, e := range s.events {
		out[e.Status]++
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	fail      func(events []pos.OutboxEvent) error
}

func (p *fakePublisher) Publish(_ context.Context, events []pos.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		if err := p.fail(events); err != nil {
			var batch *outbox.BatchError
			if errors.As(err, &batch) {
				for i, e := range events {
					if batch.Errs[i] == nil {
						p.published = append(p.published, e.ID)
					}
				}
			}
			return err
		}
	}
	for _, e := range events {
		p.published = append(p.published, e.ID)
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// =============================================================================
// TESTS
// =============================================================================

func TestRunOnce_PublishesAndMarks(t *testing.T) {
	// GIVEN: Three pending events
	src := &fakeSource{}
	src.add(3)
	pub := &fakePublisher{}
	relay := outbox.NewRelay(src, pub, outbox.Config{BatchSize: 10}, zerolog.Nop())

	// WHEN: One pass runs
	res, err := relay.RunOnce(context.Background())

	// THEN: All are published in order and marked
	require.NoError(t, err)
	assert.Equal(t, outbox.Result{Published: 3}, res)
	assert.Equal(t, []string{"evt-a", "evt-b", "evt-c"}, pub.published)
	assert.Equal(t, map[pos.OutboxStatus]int{pos.OutboxPublished: 3}, src.statuses())

	// A second pass has nothing to do
	res, err = relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outbox.Result{}, res)
}

func TestRunOnce_RespectsBatchSize(t *testing.T) {
	src := &fakeSource{}
	src.add(5)
	relay := outbox.NewRelay(src, &fakePublisher{}, outbox.Config{BatchSize: 2}, zerolog.Nop())

	res, err := relay.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.Equal(t, 3, src.statuses()[pos.OutboxPending])
}

func TestRunOnce_WholeBatchFailureRetriesThenParks(t *testing.T) {
	// GIVEN: A broker that is down
	src := &fakeSource{}
	src.add(2)
	pub := &fakePublisher{fail: func([]pos.OutboxEvent) error { return errors.New("broker down") }}
	relay := outbox.NewRelay(src, pub, outbox.Config{BatchSize: 10, MaxAttempts: 2}, zerolog.Nop())

	// WHEN: First attempt
	res, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outbox.Result{Failed: 2}, res)

	// THEN: Still pending with the error recorded
	pending, _ := src.PendingOutbox(context.Background(), 10)
	require.Len(t, pending, 2)
	assert.Equal(t, "broker down", pending[0].LastError)

	// WHEN: Second attempt hits MaxAttempts
	_, err = relay.RunOnce(context.Background())
	require.NoError(t, err)

	// THEN: Parked as failed
	assert.Equal(t, map[pos.OutboxStatus]int{pos.OutboxFailed: 2}, src.statuses())
}

func TestRunOnce_PartialBatchFailure(t *testing.T) {
	src := &fakeSource{}
	src.add(3)
	pub := &fakePublisher{fail: func(events []pos.OutboxEvent) error {
		errs := make([]error, len(events))
		errs[1] = errors.New("message too large")
		return &outbox.BatchError{Errs: errs}
	}}
	relay := outbox.NewRelay(src, pub, outbox.Config{BatchSize: 10}, zerolog.Nop())

	res, err := relay.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, outbox.Result{Published: 2, Failed: 1}, res)
	assert.Equal(t, []string{"evt-a", "evt-c"}, pub.published)
	assert.Equal(t, map[pos.OutboxStatus]int{pos.OutboxPublished: 2, pos.OutboxPending: 1}, src.statuses())
}

func TestRunOnce_SourceError(t *testing.T) {
	src := &fakeSource{loadErr: errors.New("db gone")}
	relay := outbox.NewRelay(src, &fakePublisher{}, outbox.Config{}, zerolog.Nop())

	_, err := relay.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

func TestRun_DrainsUntilCancelled(t *testing.T) {
	// GIVEN: More events than one batch
	src := &fakeSource{}
	src.add(5)
	pub := &fakePublisher{}
	relay := outbox.NewRelay(src, pub, outbox.Config{BatchSize: 2, Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// WHEN: The relay runs for a while
	require.Eventually(t, func() bool { return pub.count() == 5 }, time.Second, 5*time.Millisecond)

	// THEN: It stops cleanly on cancel
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Equal(t, map[pos.OutboxStatus]int{pos.OutboxPublished: 5}, src.statuses())
}

func TestBatchError_Message(t *testing.T) {
	err := &outbox.BatchError{Errs: []error{nil, errors.New("x"), errors.New("y")}}
	assert.Equal(t, "outbox: 2 of 3 events failed", err.Error())
}

func TestMessage_KeysByAggregate(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	msg := outbox.Message(pos.OutboxEvent{
		ID:          "evt-1",
		Type:        pos.EventRefunded,
		AggregateID: "txn-42",
		Payload:     json.RawMessage(`{"amount":"5.00"}`),
		CreatedAt:   at,
	})

	assert.Equal(t, "txn-42", string(msg.Key))
	assert.JSONEq(t, `{"amount":"5.00"}`, string(msg.Value))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, outbox.HeaderEventType, msg.Headers[1].Key)
	assert.Equal(t, pos.EventRefunded, string(msg.Headers[1].Value))
}

func TestNewKafkaPublisher_Validates(t *testing.T) {
	_, err := outbox.NewKafkaPublisher(nil, "pos.events", zerolog.Nop())
	require.Error(t, err)
	_, err = outbox.NewKafkaPublisher([]string{"localhost:9092"}, "", zerolog.Nop())
	require.Error(t, err)

	p, err := outbox.NewKafkaPublisher([]string{"localhost:9092"}, "pos.events", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestRun_FailedBatchWaitsForNextTick(t *testing.T) {
	// GIVEN: A full batch and a broker that rejects everything
	src := &fakeSource{}
	src.add(2)
	var calls int
	var mu sync.Mutex
	pub := &fakePublisher{fail: func([]pos.OutboxEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("broker unavailable")
	}}
	relay := outbox.NewRelay(src, pub, outbox.Config{BatchSize: 2, Interval: time.Hour, MaxAttempts: 10}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// WHEN: The relay runs well short of one interval
	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// THEN: Only the first pass ran and both events remain pending
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.Equal(t, map[pos.OutboxStatus]int{pos.OutboxPending: 2}, src.statuses())
	assert.Equal(t, 1, src.find("evt-a").Attempts)
}
