package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/bypassguard/internal/adapters/memory"
	"github.com/sentryops/bypassguard/internal/authz"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string {
	return &s
}

// newTestAdapter builds a memory adapter seeded with one compressor, its
// high-pressure sensor, a requester and two approvers.
func newTestAdapter() *memory.MemoryAdapter {
	db := memory.NewMemoryAdapter()

	db.Sensors().SeedEquipment(models.Equipment{
		ID:     1,
		Name:   "Compresseur K-101",
		Code:   "K-101",
		ZoneID: 1,
	})
	db.Sensors().Seed(models.Sensor{
		ID:          10,
		EquipmentID: 1,
		Name:        "Pressostat haute pression",
		Tag:         "PSH-101",
		Status:      models.SensorStatusActive,
		LastUpdated: testNow,
	})

	db.Users().Seed(models.User{ID: 1, Name: "Marc Petit", Email: "marc@plant.example", Role: models.RoleUser, Phone: strPtr("+33600000001")})
	db.Users().Seed(models.User{ID: 2, Name: "Sophie Durand", Email: "sophie@plant.example", Role: models.RoleSupervisor, Phone: strPtr("+33600000002")})
	db.Users().Seed(models.User{ID: 3, Name: "Alain Moreau", Email: "alain@plant.example", Role: models.RoleDirector, Phone: strPtr("+33600000003")})

	return db
}

func newTestService(db *memory.MemoryAdapter) *bypassService {
	svc := NewBypassService(db, authz.NewMapping()).(*bypassService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func validSubmitInput() ports.SubmitInput {
	return ports.SubmitInput{
		RequesterID:                1,
		EquipmentID:                1,
		SensorID:                   10,
		Reason:                     models.ReasonCalibration,
		Priority:                   models.PriorityMedium,
		StartTime:                  testNow.Add(time.Hour),
		EndTime:                    testNow.Add(5 * time.Hour),
		SafetyImpact:               models.ImpactLow,
		OperationalImpact:          models.ImpactMedium,
		EnvironmentalImpact:        models.ImpactLow,
		Mitigations:                []string{"surveillance manuelle de la pression"},
		SafetyAcknowledged:         true,
		ResponsibilityAcknowledged: true,
	}
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	db := newTestAdapter()
	svc := newTestService(db)

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	assert.Equal(t, "BR-2026-001", request.RequestCode)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Nil(t, request.ValidatorID)
	assert.Equal(t, testNow, request.CreatedAt)

	// Submission never touches the sensor
	sensor, err := db.Sensors().GetByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.SensorStatusActive, sensor.Status)
}

func TestSubmitSequenceIncrementsPerYear(t *testing.T) {
	db := newTestAdapter()
	svc := newTestService(db)

	first, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	assert.Equal(t, "BR-2026-001", first.RequestCode)
	assert.Equal(t, "BR-2026-002", second.RequestCode)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ports.SubmitInput)
		wantErr error
	}{
		{
			name: "Window closed before it opens",
			mutate: func(in *ports.SubmitInput) {
				in.EndTime = in.StartTime.Add(-time.Hour)
			},
			wantErr: models.ErrInvalidWindow,
		},
		{
			name: "Zero-length window",
			mutate: func(in *ports.SubmitInput) {
				in.EndTime = in.StartTime
			},
			wantErr: models.ErrInvalidWindow,
		},
		{
			name: "Unknown reason key",
			mutate: func(in *ports.SubmitInput) {
				in.Reason = models.BypassReason("because")
			},
			wantErr: models.ErrInvalidReason,
		},
		{
			name: "Unknown priority",
			mutate: func(in *ports.SubmitInput) {
				in.Priority = models.Priority("critical")
			},
			wantErr: models.ErrInvalidPriority,
		},
		{
			name: "No mitigation measures",
			mutate: func(in *ports.SubmitInput) {
				in.Mitigations = nil
			},
			wantErr: models.ErrNoMitigations,
		},
		{
			name: "Missing safety acknowledgement",
			mutate: func(in *ports.SubmitInput) {
				in.SafetyAcknowledged = false
			},
			wantErr: models.ErrAcknowledgements,
		},
		{
			name: "Missing responsibility acknowledgement",
			mutate: func(in *ports.SubmitInput) {
				in.ResponsibilityAcknowledged = false
			},
			wantErr: models.ErrAcknowledgements,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newTestAdapter())

			input := validSubmitInput()
			tt.mutate(&input)

			_, err := svc.Submit(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmitUnknownSensor(t *testing.T) {
	svc := newTestService(newTestAdapter())

	input := validSubmitInput()
	input.SensorID = 999

	_, err := svc.Submit(context.Background(), input)
	assert.ErrorIs(t, err, ErrSensorNotFound)
}

func TestValidateApproveBypassesSensor(t *testing.T) {
	db := newTestAdapter()
	svc := newTestService(db)

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	updated, err := svc.Validate(context.Background(), request.ID, 2, models.DecisionApproved, "vérifié sur site")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusApproved, updated.Status)
	require.NotNil(t, updated.ValidatorID)
	assert.Equal(t, int64(2), *updated.ValidatorID)
	require.NotNil(t, updated.ValidatedAt)
	assert.Equal(t, testNow, *updated.ValidatedAt)
	require.NotNil(t, updated.ValidationComment)
	assert.Equal(t, "vérifié sur site", *updated.ValidationComment)
	assert.Nil(t, updated.RejectionReason)

	sensor, err := db.Sensors().GetByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.SensorStatusBypassed, sensor.Status)
}

func TestValidateRejectKeepsSensorActive(t *testing.T) {
	db := newTestAdapter()
	svc := newTestService(db)

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	updated, err := svc.Validate(context.Background(), request.ID, 2, models.DecisionRejected, "mesures compensatoires insuffisantes")
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusRejected, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "mesures compensatoires insuffisantes", *updated.RejectionReason)

	sensor, err := db.Sensors().GetByID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.SensorStatusActive, sensor.Status)
}

func TestValidateRequiresComment(t *testing.T) {
	svc := newTestService(newTestAdapter())

	_, err := svc.Validate(context.Background(), 1, 2, models.DecisionApproved, "")
	assert.ErrorIs(t, err, models.ErrCommentRequired)
}

func TestValidateRejectsUnknownDecision(t *testing.T) {
	svc := newTestService(newTestAdapter())

	_, err := svc.Validate(context.Background(), 1, 2, models.ValidationDecision("maybe"), "bof")
	assert.ErrorIs(t, err, models.ErrInvalidDecision)
}

func TestValidateUnknownRequest(t *testing.T) {
	svc := newTestService(newTestAdapter())

	_, err := svc.Validate(context.Background(), 999, 2, models.DecisionApproved, "ok")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestValidateUnknownValidator(t *testing.T) {
	svc := newTestService(newTestAdapter())

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), request.ID, 999, models.DecisionApproved, "ok")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateTierEnforcement(t *testing.T) {
	db := newTestAdapter()
	svc := newTestService(db)

	input := validSubmitInput()
	input.Priority = models.PriorityHigh
	request, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)

	// A supervisor cannot decide a high priority request
	_, err = svc.Validate(context.Background(), request.ID, 2, models.DecisionApproved, "ok")
	assert.ErrorIs(t, err, models.ErrValidatorForbidden)

	// The request is untouched by the refused attempt
	reloaded, err := svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, reloaded.Status)

	// A director can
	updated, err := svc.Validate(context.Background(), request.ID, 3, models.DecisionApproved, "autorisé en coordination avec la production")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, updated.Status)
}

func TestValidatePlainUserForbidden(t *testing.T) {
	svc := newTestService(newTestAdapter())

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), request.ID, 1, models.DecisionApproved, "je valide moi-même")
	assert.ErrorIs(t, err, models.ErrValidatorForbidden)
}

func TestValidateAlreadyDecided(t *testing.T) {
	svc := newTestService(newTestAdapter())

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), request.ID, 2, models.DecisionApproved, "ok")
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), request.ID, 3, models.DecisionRejected, "trop tard")
	assert.ErrorIs(t, err, models.ErrRequestNotPending)
}

func TestCancelPendingRequest(t *testing.T) {
	svc := newTestService(newTestAdapter())

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), request.ID))

	reloaded, err := svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, reloaded.Status)
}

func TestCancelDecidedRequestConflicts(t *testing.T) {
	svc := newTestService(newTestAdapter())

	request, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), request.ID, 2, models.DecisionApproved, "ok")
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), request.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCancelUnknownRequest(t *testing.T) {
	svc := newTestService(newTestAdapter())

	err := svc.Cancel(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestGetUnknownRequest(t *testing.T) {
	svc := newTestService(newTestAdapter())

	_, err := svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	svc := newTestService(newTestAdapter())

	first, err := svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), validSubmitInput())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), first.ID, 2, models.DecisionRejected, "refusé")
	require.NoError(t, err)

	all, err := svc.List(context.Background(), "", 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.List(context.Background(), models.RequestStatusPending, 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	rejected, err := svc.List(context.Background(), models.RequestStatusRejected, 0, 10)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)
	assert.Equal(t, first.ID, rejected[0].ID)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newTestAdapter())

	_, err := svc.List(context.Background(), models.RequestStatus("archived"), 0, 10)
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}
