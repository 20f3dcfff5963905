package models

// ReactivationCase joins the rows needed to build a reactivation advisory:
// an approved request past its deadline whose sensor is still bypassed.
type ReactivationCase struct {
	Request   BypassRequest
	Sensor    Sensor
	Equipment Equipment
	Requester User
}
