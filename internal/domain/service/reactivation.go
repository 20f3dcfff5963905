package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/logger"
)

// ReactivationNotifier alerts approvers about approved requests past their
// deadline whose sensor is still bypassed. It is purely advisory: a human
// must verify the equipment and reactivate the sensor through the
// administrative sensor-status endpoint. The job mutates nothing and keeps
// alerting until the sensor status changes out from under its filter.
type ReactivationNotifier struct {
	db       ports.DatabaseAdapter
	notifier ports.Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewReactivationNotifier creates a new reactivation notifier
func NewReactivationNotifier(db ports.DatabaseAdapter, notifier ports.Notifier) *ReactivationNotifier {
	return &ReactivationNotifier{
		db:       db,
		notifier: notifier,
		logger:   logger.New("reactivation-notifier"),
		now:      time.Now,
	}
}

// Run executes one advisory pass
func (n *ReactivationNotifier) Run(ctx context.Context) error {
	now := n.now()

	cases, err := n.db.GetRequestRepository().ListOverdueApproved(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list overdue approved requests: %w", err)
	}
	if len(cases) == 0 {
		n.logger.Debugw("no sensors awaiting reactivation")
		return nil
	}

	approvers, err := n.db.GetUserRepository().ListApprovers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list approvers: %w", err)
	}

	notified := 0
	for _, c := range cases {
		body := n.buildAdvisory(&c.Request, &c.Sensor, &c.Equipment, &c.Requester)
		for _, approver := range approvers {
			if approver.Phone == nil || *approver.Phone == "" {
				continue
			}
			n.notifier.Notify(*approver.Phone, body)
			notified++
		}
	}

	n.logger.Infow("reactivation scan completed", "overdue", len(cases), "messages", notified)
	return nil
}

func (n *ReactivationNotifier) buildAdvisory(request *models.BypassRequest, sensor *models.Sensor, equipment *models.Equipment, requester *models.User) string {
	return fmt.Sprintf(
		"Alerte réactivation: le bypass %s est arrivé à échéance.\nÉquipement: %s\nCapteur: %s (#%d)\nDemandeur: %s\nÉchéance: %s\nAction requise: vérifier et réactiver le capteur.",
		request.RequestCode,
		equipment.Name,
		sensor.Name, sensor.ID,
		requester.Name,
		request.EndTime.Format(deadlineFormat),
	)
}
