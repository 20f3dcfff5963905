package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// InMemoryRequestRepository is an in-memory implementation for testing
type InMemoryRequestRepository struct {
	mu        sync.RWMutex
	requests  map[int64]*models.BypassRequest
	nextID    int64
	sequences map[int]int64

	sensors *InMemorySensorRepository
	users   *InMemoryUserRepository
}

// NewInMemoryRequestRepository creates a new in-memory request repository.
// The sensor and user repositories back the overdue-approved join.
func NewInMemoryRequestRepository(sensors *InMemorySensorRepository, users *InMemoryUserRepository) *InMemoryRequestRepository {
	return &InMemoryRequestRepository{
		requests:  make(map[int64]*models.BypassRequest),
		nextID:    1,
		sequences: make(map[int]int64),
		sensors:   sensors,
		users:     users,
	}
}

func (r *InMemoryRequestRepository) GetByID(ctx context.Context, id int64) (*models.BypassRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if request, ok := r.requests[id]; ok {
		copied := *request
		return &copied, nil
	}
	return nil, ports.ErrNotFound
}

func (r *InMemoryRequestRepository) GetByCode(ctx context.Context, code string) (*models.BypassRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, request := range r.requests {
		if request.RequestCode == code {
			copied := *request
			return &copied, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r *InMemoryRequestRepository) Create(ctx context.Context, request *models.BypassRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request.ID = r.nextID
	r.nextID++

	copied := *request
	r.requests[request.ID] = &copied
	return nil
}

func (r *InMemoryRequestRepository) List(ctx context.Context, offset, limit int) ([]*models.BypassRequest, error) {
	return r.listFiltered(func(*models.BypassRequest) bool { return true }, offset, limit), nil
}

func (r *InMemoryRequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error) {
	return r.listFiltered(func(req *models.BypassRequest) bool {
		return req.Status == status
	}, offset, limit), nil
}

func (r *InMemoryRequestRepository) listFiltered(match func(*models.BypassRequest) bool, offset, limit int) []*models.BypassRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.BypassRequest, 0)
	for _, request := range r.requests {
		if match(request) {
			copied := *request
			all = append(all, &copied)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*models.BypassRequest{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (r *InMemoryRequestRepository) ListPendingInWindow(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	return r.listByDeadline(func(req *models.BypassRequest) bool {
		return req.Status == models.RequestStatusPending && req.EndTime.After(now)
	}), nil
}

func (r *InMemoryRequestRepository) ListPendingExpired(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	return r.listByDeadline(func(req *models.BypassRequest) bool {
		return req.Status == models.RequestStatusPending && req.EndTime.Before(now)
	}), nil
}

func (r *InMemoryRequestRepository) listByDeadline(match func(*models.BypassRequest) bool) []*models.BypassRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.BypassRequest, 0)
	for _, request := range r.requests {
		if match(request) {
			copied := *request
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EndTime.Before(result[j].EndTime)
	})
	return result
}

func (r *InMemoryRequestRepository) ListOverdueApproved(ctx context.Context, now time.Time) ([]*models.ReactivationCase, error) {
	r.mu.RLock()
	overdue := make([]*models.BypassRequest, 0)
	for _, request := range r.requests {
		if request.Status == models.RequestStatusApproved && request.EndTime.Before(now) {
			copied := *request
			overdue = append(overdue, &copied)
		}
	}
	r.mu.RUnlock()

	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].EndTime.Before(overdue[j].EndTime)
	})

	cases := make([]*models.ReactivationCase, 0, len(overdue))
	for _, request := range overdue {
		sensor, err := r.sensors.GetByID(ctx, request.SensorID)
		if err != nil || sensor.Status != models.SensorStatusBypassed {
			continue
		}
		requester, err := r.users.GetByID(ctx, request.RequesterID)
		if err != nil {
			continue
		}

		equipment := models.Equipment{ID: request.EquipmentID}
		if eq, ok := r.sensors.equipmentFor(request.EquipmentID); ok {
			equipment = eq
		}

		cases = append(cases, &models.ReactivationCase{
			Request:   *request,
			Sensor:    *sensor,
			Equipment: equipment,
			Requester: *requester,
		})
	}

	return cases, nil
}

func (r *InMemoryRequestRepository) MarkValidated(ctx context.Context, id int64, status models.RequestStatus, validatorID int64, validatedAt time.Time, comment string, rejectionReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[id]
	if !ok {
		return ports.ErrNotFound
	}
	if request.Status != models.RequestStatusPending {
		return ports.ErrConflict
	}

	request.Status = status
	request.ValidatorID = &validatorID
	request.ValidatedAt = &validatedAt
	request.ValidationComment = &comment
	request.RejectionReason = rejectionReason
	return nil
}

func (r *InMemoryRequestRepository) MarkCancelled(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[id]
	if !ok {
		return ports.ErrNotFound
	}
	if request.Status != models.RequestStatusPending {
		return ports.ErrConflict
	}

	request.Status = models.RequestStatusCancelled
	return nil
}

func (r *InMemoryRequestRepository) CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.RequestStatus]int64)
	for _, request := range r.requests {
		counts[request.Status]++
	}
	return counts, nil
}

func (r *InMemoryRequestRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sequences[year]++
	return r.sequences[year], nil
}
