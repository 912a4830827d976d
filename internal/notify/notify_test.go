package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []string
	block    chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, string(message.([]byte)))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRedisNotifier_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, "booking-events", 8, quietLogger())

	id := uuid.New()
	n.Notify(context.Background(), Event{Type: model.EventBookingCreated, AggregateID: id})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := n.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if pub.count() != 1 {
		t.Fatalf("expected 1 message, got %d", pub.count())
	}
	var got Event
	if err := json.Unmarshal([]byte(pub.messages[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != model.EventBookingCreated || got.AggregateID != id {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
}

func TestRedisNotifier_DropsWhenFullWithoutBlocking(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	n := NewRedisNotifier(pub, "booking-events", 1, quietLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.Notify(context.Background(), Event{Type: model.EventPaymentSuccess, AggregateID: uuid.New()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Notify blocked on a stuck publisher")
	}

	close(pub.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := n.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Одно событие в работе у publisher и одно в буфере.
	if c := pub.count(); c < 1 || c > 2 {
		t.Fatalf("expected 1..2 published events, got %d", c)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b, NewLogNotifier(quietLogger())}.Notify(context.Background(), Event{Type: model.EventPayoutFailed})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected each notifier to get the event, got %d and %d", len(a.events), len(b.events))
	}
}
