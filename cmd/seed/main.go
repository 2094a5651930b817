package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/turnos-scheduling/internal/appointment"
	"github.com/hackgods/turnos-scheduling/internal/config"
	"github.com/hackgods/turnos-scheduling/internal/db"
	"github.com/hackgods/turnos-scheduling/internal/events"
	"github.com/hackgods/turnos-scheduling/internal/logging"
)

const (
	physicianCount     = 40
	patientCount       = 2000
	bookingAttempts    = 3000
	bookingHorizonDays = 30
)

var visitReasons = []string{
	"Routine checkup",
	"Follow-up visit",
	"Lab results review",
	"Prescription renewal",
	"New symptoms",
	"Pre-surgery evaluation",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("seed starting")

	if cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
	})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	physicians, err := seedPhysicians(context.Background(), logger, faker, pool, physicianCount)
	if err != nil {
		logger.Fatal("seed physicians", zap.Error(err))
	}
	patients, err := seedPatients(context.Background(), logger, faker, pool, patientCount)
	if err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}

	catalog, err := appointment.NewIntervalCatalog(cfg.SlotStart, cfg.SlotEnd, cfg.SlotInterval)
	if len(cfg.SlotCatalog) > 0 {
		catalog, err = appointment.NewSlotCatalog(cfg.SlotCatalog)
	}
	if err != nil {
		logger.Fatal("slot catalog", zap.Error(err))
	}

	svc := appointment.NewService(appointment.Deps{
		Store:    appointment.NewPgStore(pool),
		Catalog:  catalog,
		Events:   events.NewPgLog(pool),
		Location: cfg.Location,
		Logger:   logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel)),
	})

	if err := seedAppointments(context.Background(), logger, faker, svc, physicians, patients, bookingAttempts); err != nil {
		logger.Fatal("seed appointments", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedPhysicians(ctx context.Context, logger *zap.Logger, faker *gofakeit.Faker, pool *pgxpool.Pool, count int) ([]string, error) {
	logger.Info("seeding physicians", zap.Int("count", count))

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewString()
		spec := specialties[faker.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO physicians (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+faker.Name(), spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info("physicians seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, logger *zap.Logger, faker *gofakeit.Faker, pool *pgxpool.Pool, count int) ([]string, error) {
	logger.Info("seeding patients", zap.Int("count", count))

	const batchSize = 500
	ids := make([]string, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.NewString()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, faker.Name(), faker.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		logger.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return ids, nil
}

// seedAppointments books through the service so the seeded ledger obeys the
// same rules as live traffic. Collisions are expected and only counted.
func seedAppointments(
	ctx context.Context,
	logger *zap.Logger,
	faker *gofakeit.Faker,
	svc *appointment.Service,
	physicians, patients []string,
	attempts int,
) error {
	logger.Info("seeding appointments", zap.Int("attempts", attempts))

	slots := svc.Catalog().Slots()
	today := appointment.CivilDate(time.Now(), nil)
	secretary := appointment.Actor{Role: appointment.RoleSecretary}

	var booked, conflicts int
	for i := 0; i < attempts; i++ {
		req := appointment.BookingRequest{
			PhysicianRef: physicians[faker.Number(0, len(physicians)-1)],
			PatientRef:   patients[faker.Number(0, len(patients)-1)],
			Date:         today.AddDate(0, 0, faker.Number(1, bookingHorizonDays)),
			Slot:         slots[faker.Number(0, len(slots)-1)],
			Reason:       faker.RandomString(visitReasons),
		}

		appt, err := svc.Book(ctx, req, secretary)
		switch {
		case errors.Is(err, appointment.ErrConflict):
			conflicts++
			continue
		case err != nil:
			return err
		}
		booked++

		// Move a share of the ledger along the lifecycle.
		if faker.Bool() {
			if _, err := svc.ChangeStatus(ctx, secretary, appt.ID, appointment.StatusConfirmed); err != nil {
				return err
			}
		} else if faker.Number(0, 9) == 0 {
			if _, err := svc.ChangeStatus(ctx, secretary, appt.ID, appointment.StatusCancelled); err != nil {
				return err
			}
		}
	}

	logger.Info("appointments seeded", zap.Int("booked", booked), zap.Int("conflicts", conflicts))
	return nil
}
