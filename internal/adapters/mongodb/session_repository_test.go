package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// ctxRecordingRequestRepo captures the context each call receives so tests
// can verify the session binding.
type ctxRecordingRequestRepo struct {
	ports.RequestRepository
	gotCtx context.Context
}

func (r *ctxRecordingRequestRepo) MarkValidated(ctx context.Context, id int64, status models.RequestStatus, validatorID int64, validatedAt time.Time, comment string, rejectionReason *string) error {
	r.gotCtx = ctx
	return nil
}

func (r *ctxRecordingRequestRepo) MarkCancelled(ctx context.Context, id int64) error {
	r.gotCtx = ctx
	return nil
}

func (r *ctxRecordingRequestRepo) CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error) {
	r.gotCtx = ctx
	return nil, nil
}

type ctxRecordingSensorRepo struct {
	ports.SensorRepository
	gotCtx context.Context
}

func (r *ctxRecordingSensorRepo) UpdateStatus(ctx context.Context, id int64, status models.SensorStatus) error {
	r.gotCtx = ctx
	return nil
}

func TestSessionRequestRepositoryBindsSession(t *testing.T) {
	inner := &ctxRecordingRequestRepo{}
	repo := &sessionRequestRepository{inner: inner}

	err := repo.MarkValidated(context.Background(), 1, models.RequestStatusApproved, 2, time.Now(), "ok", nil)
	require.NoError(t, err)

	_, ok := inner.gotCtx.(mongo.SessionContext)
	assert.True(t, ok, "MarkValidated should run under the session context")

	err = repo.MarkCancelled(context.Background(), 1)
	require.NoError(t, err)

	_, ok = inner.gotCtx.(mongo.SessionContext)
	assert.True(t, ok, "MarkCancelled should run under the session context")

	_, err = repo.CountByStatus(context.Background())
	require.NoError(t, err)

	_, ok = inner.gotCtx.(mongo.SessionContext)
	assert.True(t, ok, "CountByStatus should run under the session context")
}

func TestSessionSensorRepositoryBindsSession(t *testing.T) {
	inner := &ctxRecordingSensorRepo{}
	repo := &sessionSensorRepository{inner: inner}

	err := repo.UpdateStatus(context.Background(), 10, models.SensorStatusBypassed)
	require.NoError(t, err)

	_, ok := inner.gotCtx.(mongo.SessionContext)
	assert.True(t, ok, "UpdateStatus should run under the session context")
}

// The repos handed out by a transaction must be the session-bound wrappers,
// never the plain collection-backed repos.
func TestTransactionRepositoriesBindSession(t *testing.T) {
	innerRequest := &ctxRecordingRequestRepo{}
	innerSensor := &ctxRecordingSensorRepo{}

	tx := &mongoTransaction{
		requestRepo: &sessionRequestRepository{inner: innerRequest},
		sensorRepo:  &sessionSensorRepository{inner: innerSensor},
	}

	err := tx.GetRequestRepository().MarkValidated(context.Background(), 1, models.RequestStatusApproved, 2, time.Now(), "ok", nil)
	require.NoError(t, err)

	_, ok := innerRequest.gotCtx.(mongo.SessionContext)
	assert.True(t, ok, "transactional request writes should carry the session context")

	err = tx.GetSensorRepository().UpdateStatus(context.Background(), 10, models.SensorStatusBypassed)
	require.NoError(t, err)

	_, ok = innerSensor.gotCtx.(mongo.SessionContext)
	assert.True(t, ok, "transactional sensor writes should carry the session context")
}
