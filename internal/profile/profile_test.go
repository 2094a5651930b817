package profile

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	email := "ana@example.com"
	mock.ExpectQuery("FROM patients").WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}).
			AddRow("p-1", "Ana Gómez", &email, now, now))

	name, err := newPgLookupWithQuerier(mock).PatientName(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Gómez", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPhysicianNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM physicians").WithArgs("doc-9").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialty", "created_at", "updated_at"}))

	_, err = newPgLookupWithQuerier(mock).PhysicianName(context.Background(), "doc-9")
	assert.ErrorIs(t, err, ErrPhysicianNotFound)
}
