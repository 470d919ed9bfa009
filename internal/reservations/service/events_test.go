package service

import (
	"context"
	"encoding/json"
	"poolsched/pkg/kafka"
	"poolsched/pkg/model"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	messages []kafkago.Message
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func headerValue(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher(t *testing.T) {
	w := &captureWriter{}
	producer := kafka.NewProducerWithWriter(w, "reservations.events")
	at := time.Date(2031, 1, 1, 9, 0, 0, 0, time.UTC)
	pub := NewKafkaPublisher(producer, func() time.Time { return at })

	r := model.LockerReservation("locker-1", "pool-1", "alice", span(9, 0, time.Hour))
	r.ID = "6f1c3f55-93a8-4e2b-9d54-0f7e0c0b6e11"
	require.NoError(t, pub.Publish(context.Background(), EventCreated, r))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "locker-1", string(msg.Key))
	assert.Equal(t, EventCreated, headerValue(msg, kafka.HeaderEventType))
	assert.Equal(t, r.ID, headerValue(msg, kafka.HeaderCorrelationID))
	assert.NotEmpty(t, headerValue(msg, kafka.HeaderEventID))
	assert.True(t, msg.Time.Equal(at))

	var event ReservationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventCreated, event.Type)
	assert.Equal(t, r.ID, event.Reservation.ID)
	assert.Equal(t, []string{"alice"}, event.Reservation.Users)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher().Publish(context.Background(), EventCancelled, &model.Reservation{}))
}
