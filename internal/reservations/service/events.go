package service

import (
	"context"
	"poolsched/pkg/kafka"
	"poolsched/pkg/model"
	"time"
)

const (
	EventCreated    = "reservation.created"
	EventCancelled  = "reservation.cancelled"
	EventCheckedIn  = "reservation.checked_in"
	EventCheckedOut = "reservation.checked_out"

	eventSchemaVersion = "1"
	eventSource        = "poolsched"
)

// EventPublisher announces reservation lifecycle changes.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, r *model.Reservation) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *model.Reservation) error { return nil }

// NopPublisher drops every event.
func NopPublisher() EventPublisher { return nopPublisher{} }

// ReservationEvent is the JSON payload of a lifecycle message.
type ReservationEvent struct {
	Type        string             `json:"type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Reservation *model.Reservation `json:"reservation"`
}

type kafkaPublisher struct {
	producer *kafka.Producer
	now      func() time.Time
}

// NewKafkaPublisher publishes events keyed by resource id, so that events of
// one lane or locker stay ordered within a partition.
func NewKafkaPublisher(producer *kafka.Producer, now func() time.Time) EventPublisher {
	if now == nil {
		now = time.Now
	}
	return &kafkaPublisher{producer: producer, now: now}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, r *model.Reservation) error {
	ts := p.now()
	msg, err := kafka.NewMessage().
		WithKey(r.ResourceID).
		WithValue(ReservationEvent{Type: eventType, OccurredAt: ts, Reservation: r}).
		WithEventType(eventType).
		WithCorrelationID(r.ID).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		WithTimestamp(ts).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}
