package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Publisher — часть redis.Client, нужная для публикации.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier публикует события JSON-ом в канал Redis.
// Notify только кладёт событие в буфер; при переполнении событие теряется.
type RedisNotifier struct {
	pub     Publisher
	channel string
	timeout time.Duration
	log     logrus.FieldLogger

	queue chan Event
	once  sync.Once
	done  chan struct{}
}

func NewRedisNotifier(pub Publisher, channel string, buffer int, log logrus.FieldLogger) *RedisNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	n := &RedisNotifier{
		pub:     pub,
		channel: channel,
		timeout: 2 * time.Second,
		log:     log.WithField("component", "redis_notifier"),
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *RedisNotifier) Notify(_ context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	defer func() {
		// Notify после Close.
		if recover() != nil {
			n.log.WithField("event", e.Type).Warn("notifier closed, event dropped")
		}
	}()
	select {
	case n.queue <- e:
	default:
		n.log.WithFields(logrus.Fields{
			"event":        e.Type,
			"aggregate_id": e.AggregateID,
		}).Warn("notification buffer full, event dropped")
	}
}

func (n *RedisNotifier) run() {
	defer close(n.done)
	for e := range n.queue {
		n.publish(e)
	}
}

func (n *RedisNotifier) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		n.log.WithError(err).WithField("event", e.Type).Error("marshal notification")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.pub.Publish(ctx, n.channel, data).Err(); err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"event":   e.Type,
			"channel": n.channel,
		}).Warn("publish notification")
	}
}

// Close дожидается отправки уже принятых событий или отмены ctx.
func (n *RedisNotifier) Close(ctx context.Context) error {
	n.once.Do(func() { close(n.queue) })
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
