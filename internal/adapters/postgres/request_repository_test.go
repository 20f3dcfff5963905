package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return sqlxDB, mock
}

var requestRowColumns = []string{
	"id", "request_code", "requester_id", "equipment_id", "sensor_id", "title", "description",
	"priority", "safety_impact", "operational_impact", "environmental_impact",
	"mitigation_measures", "start_time", "end_time", "created_at", "status",
	"validator_id", "validated_at", "validation_comment", "rejection_reason",
}

func addRequestRow(rows *sqlmock.Rows, id int64, code string, status models.RequestStatus, endTime time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, code, int64(1), int64(1), int64(1), models.ReasonCorrectiveMaintenance, "pump overhaul",
		models.PriorityMedium, models.ImpactLow, models.ImpactLow, models.ImpactLow,
		`["lockout applied"]`, endTime.Add(-2*time.Hour), endTime, endTime.Add(-3*time.Hour), status,
		nil, nil, nil, nil,
	)
}

func TestNewRequestRepository(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	assert.NotNil(t, repo)
}

func TestRequestGetByID_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	rows := addRequestRow(sqlmock.NewRows(requestRowColumns), 1, "BR-2026-001", models.RequestStatusPending, time.Now().Add(time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM bypass_requests WHERE id = (.+)").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	result, err := repo.GetByID(ctx, 1)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "BR-2026-001", result.RequestCode)
	assert.Equal(t, models.RequestStatusPending, result.Status)
	assert.Equal(t, models.StringList{"lockout applied"}, result.Mitigations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestGetByID_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM bypass_requests WHERE id = (.+)").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	result, err := repo.GetByID(ctx, 42)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestGetByCode_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	rows := addRequestRow(sqlmock.NewRows(requestRowColumns), 7, "BR-2026-007", models.RequestStatusApproved, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM bypass_requests WHERE request_code = (.+)").
		WithArgs("BR-2026-007").
		WillReturnRows(rows)

	result, err := repo.GetByCode(ctx, "BR-2026-007")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, int64(7), result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCreate_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	request := &models.BypassRequest{
		RequestCode: "BR-2026-002",
		RequesterID: 1,
		EquipmentID: 1,
		SensorID:    1,
		Title:       models.ReasonCalibration,
		Priority:    models.PriorityLow,
		Mitigations: models.StringList{"manual rounds"},
		StartTime:   time.Now(),
		EndTime:     time.Now().Add(4 * time.Hour),
		CreatedAt:   time.Now(),
		Status:      models.RequestStatusPending,
	}

	mock.ExpectQuery("INSERT INTO bypass_requests").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	err := repo.Create(ctx, request)

	assert.NoError(t, err)
	assert.Equal(t, int64(12), request.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCreate_Error(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	request := &models.BypassRequest{
		RequestCode: "BR-2026-002",
		Title:       models.ReasonCalibration,
		Priority:    models.PriorityLow,
		Status:      models.RequestStatusPending,
	}

	mock.ExpectQuery("INSERT INTO bypass_requests").
		WillReturnError(errors.New("duplicate key violation"))

	err := repo.Create(ctx, request)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListByStatus_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows(requestRowColumns)
	rows = addRequestRow(rows, 1, "BR-2026-001", models.RequestStatusPending, time.Now().Add(time.Hour))
	rows = addRequestRow(rows, 2, "BR-2026-002", models.RequestStatusPending, time.Now().Add(2*time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM bypass_requests WHERE status = (.+) ORDER BY created_at DESC LIMIT (.+) OFFSET (.+)").
		WithArgs(models.RequestStatusPending, 10, 0).
		WillReturnRows(rows)

	result, err := repo.ListByStatus(ctx, models.RequestStatusPending, 0, 10)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, models.RequestStatusPending, result[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingExpired_Empty(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM bypass_requests WHERE status = (.+) AND end_time < (.+)").
		WithArgs(models.RequestStatusPending, now).
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	result, err := repo.ListPendingExpired(ctx, now)

	assert.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkValidated_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()
	validatedAt := time.Now()

	mock.ExpectExec("UPDATE bypass_requests").
		WithArgs(int64(1), models.RequestStatusApproved, int64(2), validatedAt, "checked with shift lead", nil, models.RequestStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkValidated(ctx, 1, models.RequestStatusApproved, 2, validatedAt, "checked with shift lead", nil)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkValidated_Conflict(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()
	validatedAt := time.Now()

	mock.ExpectExec("UPDATE bypass_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.MarkValidated(ctx, 1, models.RequestStatusApproved, 2, validatedAt, "ok", nil)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkValidated_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()
	validatedAt := time.Now()

	mock.ExpectExec("UPDATE bypass_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.MarkValidated(ctx, 99, models.RequestStatusRejected, 2, validatedAt, "no", nil)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCancelled_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE bypass_requests SET status = (.+) WHERE id = (.+) AND status = (.+)").
		WithArgs(int64(3), models.RequestStatusCancelled, models.RequestStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCancelled(ctx, 3)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCancelled_Conflict(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE bypass_requests SET status = (.+) WHERE id = (.+) AND status = (.+)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.MarkCancelled(ctx, 3)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT status, COUNT(.+) FROM bypass_requests GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(models.RequestStatusPending, int64(3)).
			AddRow(models.RequestStatusApproved, int64(1)))

	counts, err := repo.CountByStatus(ctx)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), counts[models.RequestStatusPending])
	assert.Equal(t, int64(1), counts[models.RequestStatusApproved])
	assert.Equal(t, int64(0), counts[models.RequestStatusRejected])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextSequence(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	repo := NewRequestRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO request_sequences").
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(14))

	seq, err := repo.NextSequence(ctx, 2026)

	assert.NoError(t, err)
	assert.Equal(t, int64(14), seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}
