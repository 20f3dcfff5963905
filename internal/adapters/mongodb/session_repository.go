package mongodb

import (
	"context"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"go.mongodb.org/mongo-driver/mongo"
)

// sessionRequestRepository binds every repository call to a session so the
// operations join the session's transaction. A plain context would make each
// write autocommit on its own, which breaks the approve-path atomicity.
type sessionRequestRepository struct {
	session mongo.Session
	inner   ports.RequestRepository
}

func (r *sessionRequestRepository) bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, r.session)
}

func (r *sessionRequestRepository) GetByID(ctx context.Context, id int64) (*models.BypassRequest, error) {
	return r.inner.GetByID(r.bind(ctx), id)
}

func (r *sessionRequestRepository) GetByCode(ctx context.Context, code string) (*models.BypassRequest, error) {
	return r.inner.GetByCode(r.bind(ctx), code)
}

func (r *sessionRequestRepository) Create(ctx context.Context, request *models.BypassRequest) error {
	return r.inner.Create(r.bind(ctx), request)
}

func (r *sessionRequestRepository) List(ctx context.Context, offset, limit int) ([]*models.BypassRequest, error) {
	return r.inner.List(r.bind(ctx), offset, limit)
}

func (r *sessionRequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error) {
	return r.inner.ListByStatus(r.bind(ctx), status, offset, limit)
}

func (r *sessionRequestRepository) ListPendingInWindow(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	return r.inner.ListPendingInWindow(r.bind(ctx), now)
}

func (r *sessionRequestRepository) ListPendingExpired(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	return r.inner.ListPendingExpired(r.bind(ctx), now)
}

func (r *sessionRequestRepository) ListOverdueApproved(ctx context.Context, now time.Time) ([]*models.ReactivationCase, error) {
	return r.inner.ListOverdueApproved(r.bind(ctx), now)
}

func (r *sessionRequestRepository) MarkValidated(ctx context.Context, id int64, status models.RequestStatus, validatorID int64, validatedAt time.Time, comment string, rejectionReason *string) error {
	return r.inner.MarkValidated(r.bind(ctx), id, status, validatorID, validatedAt, comment, rejectionReason)
}

func (r *sessionRequestRepository) MarkCancelled(ctx context.Context, id int64) error {
	return r.inner.MarkCancelled(r.bind(ctx), id)
}

func (r *sessionRequestRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	return r.inner.NextSequence(r.bind(ctx), year)
}

func (r *sessionRequestRepository) CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error) {
	return r.inner.CountByStatus(r.bind(ctx))
}

// sessionSensorRepository binds sensor writes to the same session
type sessionSensorRepository struct {
	session mongo.Session
	inner   ports.SensorRepository
}

func (r *sessionSensorRepository) bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, r.session)
}

func (r *sessionSensorRepository) GetByID(ctx context.Context, id int64) (*models.Sensor, error) {
	return r.inner.GetByID(r.bind(ctx), id)
}

func (r *sessionSensorRepository) UpdateStatus(ctx context.Context, id int64, status models.SensorStatus) error {
	return r.inner.UpdateStatus(r.bind(ctx), id, status)
}
