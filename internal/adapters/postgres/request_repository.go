package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

const requestColumns = `
	id, request_code, requester_id, equipment_id, sensor_id, title, description,
	priority, safety_impact, operational_impact, environmental_impact,
	mitigation_measures, start_time, end_time, created_at, status,
	validator_id, validated_at, validation_comment, rejection_reason
`

// requestRepository implements the RequestRepository interface using PostgreSQL
type requestRepository struct {
	db sqlx.ExtContext
}

// NewRequestRepository creates a new PostgreSQL request repository
func NewRequestRepository(db sqlx.ExtContext) ports.RequestRepository {
	return &requestRepository{db: db}
}

// GetByID retrieves a request by internal id
func (r *requestRepository) GetByID(ctx context.Context, id int64) (*models.BypassRequest, error) {
	defer observeQuery("request_get_by_id")()

	query := `SELECT ` + requestColumns + ` FROM bypass_requests WHERE id = $1`

	var request models.BypassRequest
	err := sqlx.GetContext(ctx, r.db, &request, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return &request, nil
}

// GetByCode retrieves a request by its human-readable code
func (r *requestRepository) GetByCode(ctx context.Context, code string) (*models.BypassRequest, error) {
	defer observeQuery("request_get_by_code")()

	query := `SELECT ` + requestColumns + ` FROM bypass_requests WHERE request_code = $1`

	var request models.BypassRequest
	err := sqlx.GetContext(ctx, r.db, &request, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request by code: %w", err)
	}

	return &request, nil
}

// Create adds a new request record
func (r *requestRepository) Create(ctx context.Context, request *models.BypassRequest) error {
	defer observeQuery("request_create")()

	query := `
		INSERT INTO bypass_requests (
			request_code, requester_id, equipment_id, sensor_id, title, description,
			priority, safety_impact, operational_impact, environmental_impact,
			mitigation_measures, start_time, end_time, created_at, status
		) VALUES (
			:request_code, :requester_id, :equipment_id, :sensor_id, :title, :description,
			:priority, :safety_impact, :operational_impact, :environmental_impact,
			:mitigation_measures, :start_time, :end_time, :created_at, :status
		) RETURNING id
	`

	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, request)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&request.ID); err != nil {
			return fmt.Errorf("failed to scan request id: %w", err)
		}
	}

	return nil
}

// List retrieves requests with pagination, newest first
func (r *requestRepository) List(ctx context.Context, offset, limit int) ([]*models.BypassRequest, error) {
	defer observeQuery("request_list")()

	query := `SELECT ` + requestColumns + ` FROM bypass_requests ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	var requests []*models.BypassRequest
	err := sqlx.SelectContext(ctx, r.db, &requests, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	return requests, nil
}

// ListByStatus retrieves requests by status with pagination
func (r *requestRepository) ListByStatus(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error) {
	defer observeQuery("request_list_by_status")()

	query := `SELECT ` + requestColumns + ` FROM bypass_requests WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var requests []*models.BypassRequest
	err := sqlx.SelectContext(ctx, r.db, &requests, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by status: %w", err)
	}

	return requests, nil
}

// ListPendingInWindow selects pending requests whose end time is still ahead
func (r *requestRepository) ListPendingInWindow(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	defer observeQuery("request_list_pending_in_window")()

	query := `SELECT ` + requestColumns + ` FROM bypass_requests WHERE status = $1 AND end_time > $2 ORDER BY end_time ASC`

	var requests []*models.BypassRequest
	err := sqlx.SelectContext(ctx, r.db, &requests, query, models.RequestStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests in window: %w", err)
	}

	return requests, nil
}

// ListPendingExpired selects pending requests whose deadline has passed
func (r *requestRepository) ListPendingExpired(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	defer observeQuery("request_list_pending_expired")()

	query := `SELECT ` + requestColumns + ` FROM bypass_requests WHERE status = $1 AND end_time < $2 ORDER BY end_time ASC`

	var requests []*models.BypassRequest
	err := sqlx.SelectContext(ctx, r.db, &requests, query, models.RequestStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending requests: %w", err)
	}

	return requests, nil
}

// reactivationRow is the flat scan target for the overdue-approved join
type reactivationRow struct {
	models.BypassRequest
	SensorName     string              `db:"sensor_name"`
	SensorTag      string              `db:"sensor_tag"`
	SensorStatus   models.SensorStatus `db:"sensor_status"`
	EquipmentName  string              `db:"equipment_name"`
	EquipmentCode  string              `db:"equipment_code"`
	RequesterName  string              `db:"requester_name"`
	RequesterRole  models.Role         `db:"requester_role"`
	RequesterPhone *string             `db:"requester_phone"`
}

// ListOverdueApproved selects approved requests past their deadline whose
// sensor is still bypassed, joined for message content
func (r *requestRepository) ListOverdueApproved(ctx context.Context, now time.Time) ([]*models.ReactivationCase, error) {
	defer observeQuery("request_list_overdue_approved")()

	query := `
		SELECT r.id, r.request_code, r.requester_id, r.equipment_id, r.sensor_id, r.title,
		       r.description, r.priority, r.safety_impact, r.operational_impact,
		       r.environmental_impact, r.mitigation_measures, r.start_time, r.end_time,
		       r.created_at, r.status, r.validator_id, r.validated_at,
		       r.validation_comment, r.rejection_reason,
		       s.name AS sensor_name, s.tag AS sensor_tag, s.status AS sensor_status,
		       e.name AS equipment_name, e.code AS equipment_code,
		       u.name AS requester_name, u.role AS requester_role, u.phone AS requester_phone
		FROM bypass_requests r
		JOIN sensors s ON s.id = r.sensor_id
		JOIN equipment e ON e.id = r.equipment_id
		JOIN users u ON u.id = r.requester_id
		WHERE r.status = $1 AND r.end_time < $2 AND s.status = $3
		ORDER BY r.end_time ASC
	`

	var rows []reactivationRow
	err := sqlx.SelectContext(ctx, r.db, &rows, query,
		models.RequestStatusApproved, now, models.SensorStatusBypassed)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue approved requests: %w", err)
	}

	cases := make([]*models.ReactivationCase, 0, len(rows))
	for _, row := range rows {
		cases = append(cases, &models.ReactivationCase{
			Request: row.BypassRequest,
			Sensor: models.Sensor{
				ID:          row.SensorID,
				EquipmentID: row.EquipmentID,
				Name:        row.SensorName,
				Tag:         row.SensorTag,
				Status:      row.SensorStatus,
			},
			Equipment: models.Equipment{
				ID:   row.EquipmentID,
				Name: row.EquipmentName,
				Code: row.EquipmentCode,
			},
			Requester: models.User{
				ID:    row.RequesterID,
				Name:  row.RequesterName,
				Role:  row.RequesterRole,
				Phone: row.RequesterPhone,
			},
		})
	}

	return cases, nil
}

// MarkValidated records a validation outcome on a still-pending request
func (r *requestRepository) MarkValidated(ctx context.Context, id int64, status models.RequestStatus, validatorID int64, validatedAt time.Time, comment string, rejectionReason *string) error {
	defer observeQuery("request_mark_validated")()

	query := `
		UPDATE bypass_requests
		SET status = $2,
		    validator_id = $3,
		    validated_at = $4,
		    validation_comment = $5,
		    rejection_reason = $6
		WHERE id = $1 AND status = $7
	`

	result, err := r.db.ExecContext(ctx, query, id, status, validatorID, validatedAt, comment, rejectionReason, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark request validated: %w", err)
	}

	return r.checkPreconditionedWrite(ctx, result, id)
}

// MarkCancelled cancels a still-pending request
func (r *requestRepository) MarkCancelled(ctx context.Context, id int64) error {
	defer observeQuery("request_mark_cancelled")()

	query := `UPDATE bypass_requests SET status = $2 WHERE id = $1 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, id, models.RequestStatusCancelled, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark request cancelled: %w", err)
	}

	return r.checkPreconditionedWrite(ctx, result, id)
}

// checkPreconditionedWrite distinguishes a missing row from a lost race when
// a status-preconditioned update matched nothing
func (r *requestRepository) checkPreconditionedWrite(ctx context.Context, result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS(SELECT 1 FROM bypass_requests WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check request existence: %w", err)
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrConflict
}

// CountByStatus returns the number of requests per status
func (r *requestRepository) CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error) {
	defer observeQuery("request_count_by_status")()

	query := `SELECT status, COUNT(*) AS count FROM bypass_requests GROUP BY status`

	var rows []struct {
		Status models.RequestStatus `db:"status"`
		Count  int64                `db:"count"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count requests by status: %w", err)
	}

	counts := make(map[models.RequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// NextSequence reserves the next request-code sequence number for a year
func (r *requestRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	defer observeQuery("request_next_sequence")()

	query := `
		INSERT INTO request_sequences (year, last_value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = request_sequences.last_value + 1
		RETURNING last_value
	`

	var seq int64
	if err := sqlx.GetContext(ctx, r.db, &seq, query, year); err != nil {
		return 0, fmt.Errorf("failed to reserve request sequence: %w", err)
	}

	return seq, nil
}
