package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/logger"
)

const deadlineFormat = "02/01/2006 15:04"

// Sweeper drives the time-based transitions of pending requests. Each run
// performs two independent, idempotent scans: reminders for pending requests
// still inside their window, then auto-cancellation of pending requests whose
// deadline has passed. The two filters are disjoint at any instant.
type Sweeper struct {
	db       ports.DatabaseAdapter
	notifier ports.Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(db ports.DatabaseAdapter, notifier ports.Notifier) *Sweeper {
	return &Sweeper{
		db:       db,
		notifier: notifier,
		logger:   logger.New("expiry-sweeper"),
		now:      time.Now,
	}
}

// Run executes one sweep. Reminders are sent before cancellations are
// evaluated. A failure on one request or recipient never aborts the batch.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()

	approvers, err := s.db.GetUserRepository().ListApprovers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list approvers: %w", err)
	}

	if err := s.remindPending(ctx, now, approvers); err != nil {
		return err
	}
	if err := s.cancelExpired(ctx, now, approvers); err != nil {
		return err
	}
	return s.updateStatusGauge(ctx)
}

// updateStatusGauge refreshes the per-status request gauge. Every status gets
// an explicit value so counts that drop to zero are reported as zero.
func (s *Sweeper) updateStatusGauge(ctx context.Context) error {
	counts, err := s.db.GetRequestRepository().CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count requests by status: %w", err)
	}

	for _, status := range []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusApproved,
		models.RequestStatusRejected,
		models.RequestStatusCancelled,
	} {
		logger.RequestsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return nil
}

// remindPending notifies approvers of every pending request still inside its
// window. Pure fan-out, no state mutation; recipients are reminded again on
// every cycle until the request leaves the pending filter.
func (s *Sweeper) remindPending(ctx context.Context, now time.Time, approvers []*models.User) error {
	pending, err := s.db.GetRequestRepository().ListPendingInWindow(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list pending requests: %w", err)
	}

	for _, request := range pending {
		requester, err := s.db.GetUserRepository().GetByID(ctx, request.RequesterID)
		if err != nil {
			s.logger.Warnw("skipping reminder, requester lookup failed",
				"request_code", request.RequestCode, "requester_id", request.RequesterID, "error", err)
			continue
		}

		body := fmt.Sprintf(
			"Rappel: demande de bypass %s en attente de validation.\nDemandeur: %s\nMotif: %s\nPriorité: %s\nÉchéance: %s",
			request.RequestCode,
			requester.Name,
			request.Title.Label(),
			request.Priority,
			request.EndTime.Format(deadlineFormat),
		)
		s.fanOut(approvers, body)
	}

	s.logger.Infow("reminder scan completed", "pending", len(pending), "approvers", len(approvers))
	return nil
}

// cancelExpired cancels every pending request whose deadline has passed, then
// notifies approvers. Already-cancelled requests fall out of the pending
// filter, so re-running is safe and never re-notifies.
func (s *Sweeper) cancelExpired(ctx context.Context, now time.Time, approvers []*models.User) error {
	expired, err := s.db.GetRequestRepository().ListPendingExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list expired requests: %w", err)
	}

	cancelled := 0
	for _, request := range expired {
		if err := s.db.GetRequestRepository().MarkCancelled(ctx, request.ID); err != nil {
			// A concurrent validator may have decided the request between the
			// scan and the write; either way this request is no longer ours.
			s.logger.Warnw("auto-cancel skipped", "request_code", request.RequestCode, "error", err)
			continue
		}
		cancelled++
		logger.RequestTransitionTotal.WithLabelValues(string(models.RequestStatusCancelled), string(models.TriggerExpire)).Inc()

		body := fmt.Sprintf(
			"Demande de bypass %s annulée automatiquement (échéance dépassée).\nMotif: %s\nPriorité: %s\nÉchéance: %s",
			request.RequestCode,
			request.Title.Label(),
			request.Priority,
			request.EndTime.Format(deadlineFormat),
		)
		s.fanOut(approvers, body)
	}

	s.logger.Infow("auto-cancel scan completed", "expired", len(expired), "cancelled", cancelled)
	return nil
}

// fanOut enqueues one message per approver with a phone number on file
func (s *Sweeper) fanOut(approvers []*models.User, body string) {
	for _, approver := range approvers {
		if approver.Phone == nil || *approver.Phone == "" {
			continue
		}
		s.notifier.Notify(*approver.Phone, body)
	}
}
