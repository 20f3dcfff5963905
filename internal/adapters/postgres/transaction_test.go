package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sentryops/bypassguard/internal/authz"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/domain/service"
	"github.com/stretchr/testify/assert"
)

// An approval writes the request status and the sensor flip in one
// transaction. When the sensor write fails the status write must roll back,
// leaving no approved request with a non-bypassed sensor.
func TestApproveRollsBackOnSensorFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	adapter := &PostgresAdapter{
		db:          db,
		config:      &ports.PostgresConfig{},
		requestRepo: NewRequestRepository(db),
		sensorRepo:  NewSensorRepository(db),
		userRepo:    NewUserRepository(db),
	}
	svc := service.NewBypassService(adapter, authz.NewMapping())
	ctx := context.Background()

	rows := addRequestRow(sqlmock.NewRows(requestRowColumns), 1, "BR-2026-001", models.RequestStatusPending, time.Now().Add(time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM bypass_requests WHERE id = (.+)").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = (.+)").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "phone"}).
			AddRow(int64(2), "Sophie Durand", "sophie.durand@example.com", models.RoleSupervisor, "+33600000002"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bypass_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sensors").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	result, err := svc.Validate(ctx, 1, 2, models.DecisionApproved, "checked with shift lead")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to bypass sensor")
	assert.NoError(t, mock.ExpectationsWereMet())
}
