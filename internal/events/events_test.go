package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgLogPublish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := newPgLogWithExec(mock)
	id := uuid.New()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs("APPOINTMENT_CREATED", id, []byte(`{"slot":"08:00"}`), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = log.Publish(context.Background(), Event{
		Type:          "APPOINTMENT_CREATED",
		AppointmentID: id,
		Payload:       map[string]any{"slot": "08:00"},
		OccurredAt:    at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgLogPublishWrapsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO event_logs").WillReturnError(errors.New("db down"))

	err = newPgLogWithExec(mock).Publish(context.Background(), Event{Type: "X", AppointmentID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert event log")
}

type fakeChannel struct {
	declared  string
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = name
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisherPublish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisherWithChannel(ch, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultExchange, ch.declared)

	ev := Event{
		Type:          "APPOINTMENT_STATUS_CHANGED",
		AppointmentID: uuid.New(),
		Payload:       map[string]any{"from": "pending", "to": "confirmed"},
		OccurredAt:    time.Now().UTC(),
	}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "appointment.status.changed", ch.keys[0])
	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, ev.AppointmentID, decoded.AppointmentID)
	assert.Equal(t, "confirmed", decoded.Payload["to"])
}

func TestAMQPPublisherError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p, err := newAMQPPublisherWithChannel(ch, "custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", ch.declared)

	err = p.Publish(context.Background(), Event{Type: "APPOINTMENT_CREATED"})
	assert.ErrorContains(t, err, "channel closed")
}

type recordingPublisher struct {
	got []Event
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{err: errors.New("b failed")}
	c := &recordingPublisher{}

	err := Fanout{a, nil, b, c}.Publish(context.Background(), Event{Type: "APPOINTMENT_CREATED"})
	assert.ErrorContains(t, err, "b failed")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Len(t, c.got, 1)
}
