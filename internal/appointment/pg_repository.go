package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// activeSlotIndex is the partial unique index over non-cancelled rows.
const activeSlotIndex = "appointments_active_slot_uidx"

const uniqueViolation = "23505"

const appointmentColumns = `id, patient_ref, physician_ref, date, slot, reason, notes, status, created_at, updated_at`

type pgxQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore keeps the ledger in Postgres. Double-booking is prevented by the
// partial unique index, so concurrent inserts from several API instances
// still resolve to exactly one winner.
type PgStore struct {
	pool pgxQuerier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PgStore{pool: pool}
}

func newPgStoreWithQuerier(q pgxQuerier) *PgStore {
	return &PgStore{pool: q}
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	var slot, status string

	err := row.Scan(
		&a.ID,
		&a.PatientRef,
		&a.PhysicianRef,
		&a.Date,
		&slot,
		&a.Reason,
		&a.Notes,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	a.Slot = Slot(slot)
	a.Status = Status(status)
	a.Date = CivilDate(a.Date, nil)
	return a, nil
}

func (r *PgStore) Create(ctx context.Context, c Candidate) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_ref, physician_ref, date, slot, reason, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', now(), now())
		RETURNING `+appointmentColumns,
		uuid.New(), c.PatientRef, c.PhysicianRef, c.Date, string(c.Slot), c.Reason, c.Notes)

	a, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeSlotIndex {
			return Appointment{}, &ConflictError{PhysicianRef: c.PhysicianRef, Date: c.Date, Slot: c.Slot}
		}
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return a, nil
}

func (r *PgStore) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgStore) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, guard StatusGuard) (Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("lock appointment: %w", err)
	}

	if guard != nil {
		if err := guard(current); err != nil {
			return Appointment{}, err
		}
	}
	if err := CheckTransition(current, to); err != nil {
		return Appointment{}, err
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, string(to)))
	if err != nil {
		return Appointment{}, fmt.Errorf("update appointment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("commit status update: %w", err)
	}
	return updated, nil
}

func (r *PgStore) Query(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PhysicianRef != "" {
		add("physician_ref = $%d", f.PhysicianRef)
	}
	if f.PatientRef != "" {
		add("patient_ref = $%d", f.PatientRef)
	}
	if f.Date != nil {
		add("date = $%d", *f.Date)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}

	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY date, slot, seq`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
