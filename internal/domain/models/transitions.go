package models

// Trigger identifies what caused a status transition
type Trigger string

const (
	TriggerValidate Trigger = "validate" // Validator decision
	TriggerCancel   Trigger = "cancel"   // Requester/admin withdrawal
	TriggerExpire   Trigger = "expire"   // Sweeper auto-cancel on deadline
)

// Transition is a single allowed edge in the request lifecycle
type Transition struct {
	From    RequestStatus
	To      RequestStatus
	Trigger Trigger
}

var transitionsTable = []Transition{
	{From: RequestStatusPending, To: RequestStatusApproved, Trigger: TriggerValidate},
	{From: RequestStatusPending, To: RequestStatusRejected, Trigger: TriggerValidate},
	{From: RequestStatusPending, To: RequestStatusCancelled, Trigger: TriggerCancel},
	{From: RequestStatusPending, To: RequestStatusCancelled, Trigger: TriggerExpire},
}

// TransitionFor returns the allowed transition for a given edge and trigger
func TransitionFor(from, to RequestStatus, trigger Trigger) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to && tr.Trigger == trigger {
			return tr, true
		}
	}
	return Transition{}, false
}

// CanTransition reports whether any trigger allows the given edge
func CanTransition(from, to RequestStatus) bool {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}
