// Package profile reads patient and physician display data. Profiles are
// owned elsewhere; this package only joins names onto appointment views.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrPhysicianNotFound = errors.New("physician not found")
)

type Patient struct {
	ID        string
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Physician struct {
	ID        string
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgLookup struct {
	db rowQuerier
}

func NewPgLookup(pool *pgxpool.Pool) *PgLookup {
	if pool == nil {
		panic("profile: pgx pool required")
	}
	return &PgLookup{db: pool}
}

func newPgLookupWithQuerier(q rowQuerier) *PgLookup {
	return &PgLookup{db: q}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPhysician(row pgx.Row) (*Physician, error) {
	var p Physician
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPhysicianNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (l *PgLookup) Patient(ctx context.Context, id string) (*Patient, error) {
	row := l.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (l *PgLookup) Physician(ctx context.Context, id string) (*Physician, error) {
	row := l.db.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM physicians
		WHERE id = $1
	`, id)
	return scanPhysician(row)
}

func (l *PgLookup) PatientName(ctx context.Context, ref string) (string, error) {
	p, err := l.Patient(ctx, ref)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

func (l *PgLookup) PhysicianName(ctx context.Context, ref string) (string, error) {
	p, err := l.Physician(ctx, ref)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
