package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgLog appends events to the event_logs audit table.
type PgLog struct {
	db execer
}

func NewPgLog(pool *pgxpool.Pool) *PgLog {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &PgLog{db: pool}
}

func newPgLogWithExec(exec execer) *PgLog {
	return &PgLog{db: exec}
}

func (l *PgLog) Publish(ctx context.Context, ev Event) error {
	payload, err := ev.marshalPayload()
	if err != nil {
		return err
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, ev.AppointmentID, payload, nullableTime(ev))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(ev Event) any {
	if ev.OccurredAt.IsZero() {
		return nil
	}
	return ev.OccurredAt
}
