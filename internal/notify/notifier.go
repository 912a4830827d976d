package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/tour-marketplace/internal/model"
)

// Event — уведомление о переходе, уходит во внешний канал доставки.
type Event struct {
	Type        model.EventType `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	TravelerID  *uuid.UUID      `json:"traveler_id,omitempty"`
	GuideID     *uuid.UUID      `json:"guide_id,omitempty"`
	Data        map[string]any  `json:"data,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Notifier не должен блокировать вызывающего и не возвращает ошибок:
// потеря уведомления не откатывает переход.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Multi рассылает событие всем вложенным Notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}

// LogNotifier пишет события в лог.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, e Event) {
	fields := logrus.Fields{
		"event":        e.Type,
		"aggregate_id": e.AggregateID,
	}
	if e.TravelerID != nil {
		fields["traveler_id"] = *e.TravelerID
	}
	if e.GuideID != nil {
		fields["guide_id"] = *e.GuideID
	}
	n.log.WithFields(fields).Info("notification")
}

// Nop глотает всё.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
