package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/bypassguard/internal/adapters/memory"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/logger"
)

// captureNotifier records notification intents for assertions
type captureNotifier struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	recipient string
	body      string
}

func (c *captureNotifier) Notify(recipient, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, capturedMessage{recipient: recipient, body: body})
}

func (c *captureNotifier) all() []capturedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func newTestSweeper(db *memory.MemoryAdapter, notifier *captureNotifier) *Sweeper {
	sweeper := NewSweeper(db, notifier)
	sweeper.now = func() time.Time { return testNow }
	return sweeper
}

// seedRequest installs a request fixture directly, bypassing the submit path
func seedRequest(t *testing.T, db *memory.MemoryAdapter, request *models.BypassRequest) *models.BypassRequest {
	t.Helper()
	require.NoError(t, db.GetRequestRepository().Create(context.Background(), request))
	return request
}

func pendingRequest(code string, end time.Time) *models.BypassRequest {
	return &models.BypassRequest{
		RequestCode: code,
		RequesterID: 1,
		EquipmentID: 1,
		SensorID:    10,
		Title:       models.ReasonCalibration,
		Priority:    models.PriorityMedium,
		Mitigations: models.StringList{"surveillance manuelle"},
		StartTime:   end.Add(-4 * time.Hour),
		EndTime:     end,
		CreatedAt:   end.Add(-5 * time.Hour),
		Status:      models.RequestStatusPending,
	}
}

func TestSweeperRemindsPendingInWindow(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(2*time.Hour)))

	require.NoError(t, sweeper.Run(context.Background()))

	// One reminder per approver with a phone number: Sophie and Alain
	messages := notifier.all()
	require.Len(t, messages, 2)
	assert.Equal(t, "+33600000002", messages[0].recipient)
	assert.Equal(t, "+33600000003", messages[1].recipient)
	assert.Contains(t, messages[0].body, "Rappel")
	assert.Contains(t, messages[0].body, "BR-2026-001")
	assert.Contains(t, messages[0].body, "Étalonnage")
	assert.Contains(t, messages[0].body, "Marc Petit")

	// Reminders mutate nothing
	request, err := db.GetRequestRepository().GetByCode(context.Background(), "BR-2026-001")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
}

func TestSweeperRemindsOnEveryCycle(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(2*time.Hour)))

	require.NoError(t, sweeper.Run(context.Background()))
	require.NoError(t, sweeper.Run(context.Background()))

	assert.Equal(t, 4, notifier.count())
}

func TestSweeperCancelsExpiredPending(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(-time.Hour)))

	require.NoError(t, sweeper.Run(context.Background()))

	request, err := db.GetRequestRepository().GetByCode(context.Background(), "BR-2026-001")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, request.Status)

	messages := notifier.all()
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].body, "annulée automatiquement")
	assert.Contains(t, messages[0].body, "BR-2026-001")
}

func TestSweeperAutoCancelIsIdempotent(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(-time.Hour)))

	require.NoError(t, sweeper.Run(context.Background()))
	first := notifier.count()

	// The cancelled request fell out of the pending filter; a second run
	// neither re-cancels nor re-notifies
	require.NoError(t, sweeper.Run(context.Background()))
	assert.Equal(t, first, notifier.count())
}

func TestSweeperFiltersAreDisjoint(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(2*time.Hour)))
	seedRequest(t, db, pendingRequest("BR-2026-002", testNow.Add(-time.Hour)))

	require.NoError(t, sweeper.Run(context.Background()))

	var reminders, cancellations int
	for _, msg := range notifier.all() {
		switch {
		case strings.Contains(msg.body, "Rappel"):
			reminders++
			assert.Contains(t, msg.body, "BR-2026-001")
		case strings.Contains(msg.body, "annulée automatiquement"):
			cancellations++
			assert.Contains(t, msg.body, "BR-2026-002")
		}
	}
	assert.Equal(t, 2, reminders)
	assert.Equal(t, 2, cancellations)

	inWindow, err := db.GetRequestRepository().GetByCode(context.Background(), "BR-2026-001")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, inWindow.Status)

	expired, err := db.GetRequestRepository().GetByCode(context.Background(), "BR-2026-002")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, expired.Status)
}

func TestSweeperIgnoresDecidedRequests(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	approved := pendingRequest("BR-2026-001", testNow.Add(-time.Hour))
	approved.Status = models.RequestStatusApproved
	seedRequest(t, db, approved)

	rejected := pendingRequest("BR-2026-002", testNow.Add(2*time.Hour))
	rejected.Status = models.RequestStatusRejected
	seedRequest(t, db, rejected)

	require.NoError(t, sweeper.Run(context.Background()))

	assert.Equal(t, 0, notifier.count())

	reloaded, err := db.GetRequestRepository().GetByCode(context.Background(), "BR-2026-001")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, reloaded.Status)
}

func TestSweeperRefreshesStatusGauge(t *testing.T) {
	db := newTestAdapter()
	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(2*time.Hour)))
	seedRequest(t, db, pendingRequest("BR-2026-002", testNow.Add(3*time.Hour)))

	approved := pendingRequest("BR-2026-003", testNow.Add(time.Hour))
	approved.Status = models.RequestStatusApproved
	seedRequest(t, db, approved)

	require.NoError(t, sweeper.Run(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(logger.RequestsByStatus.WithLabelValues(string(models.RequestStatusPending))))
	assert.Equal(t, 1.0, testutil.ToFloat64(logger.RequestsByStatus.WithLabelValues(string(models.RequestStatusApproved))))
	assert.Equal(t, 0.0, testutil.ToFloat64(logger.RequestsByStatus.WithLabelValues(string(models.RequestStatusRejected))))

	// The gauge tracks the current counts, not a running total
	require.NoError(t, db.GetRequestRepository().MarkCancelled(context.Background(), 1))
	require.NoError(t, sweeper.Run(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(logger.RequestsByStatus.WithLabelValues(string(models.RequestStatusPending))))
	assert.Equal(t, 1.0, testutil.ToFloat64(logger.RequestsByStatus.WithLabelValues(string(models.RequestStatusCancelled))))
}

func TestSweeperSkipsApproversWithoutPhone(t *testing.T) {
	db := newTestAdapter()
	db.Users().Seed(models.User{ID: 4, Name: "Paul Lefevre", Email: "paul@plant.example", Role: models.RoleAdministrator})

	notifier := &captureNotifier{}
	sweeper := newTestSweeper(db, notifier)

	seedRequest(t, db, pendingRequest("BR-2026-001", testNow.Add(2*time.Hour)))

	require.NoError(t, sweeper.Run(context.Background()))

	// Paul has no phone on file; only Sophie and Alain are notified
	assert.Equal(t, 2, notifier.count())
}
