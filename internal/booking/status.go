package booking

import "github.com/google/uuid"

type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	// RoleSystem is used by internal callers such as the payment callback
	// and the expiry worker.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor identifies who is attempting an operation. Authentication is the
// calling layer's concern; the core only checks role and ownership.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// transitions is the closed appointment state machine: each permitted edge
// maps to the roles allowed to drive it.
var transitions = map[Status]map[Status][]Role{
	StatusRequested: {
		StatusConfirmed: {RoleSystem, RoleAdmin},
		StatusCancelled: {RolePatient, RoleDoctor, RoleAdmin, RoleSystem},
	},
	StatusConfirmed: {
		StatusCompleted: {RoleDoctor, RoleAdmin},
		StatusCancelled: {RolePatient, RoleDoctor, RoleAdmin},
		StatusNoShow:    {RoleDoctor, RoleAdmin},
	},
}

// CanTransition reports whether the edge from -> to exists at all.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// allowedActor reports whether actor may drive the from -> to edge of the
// given appointment. Patients and doctors must be a party to the
// appointment; admin and system actors are unrestricted.
func allowedActor(ap *Appointment, from, to Status, actor Actor) bool {
	roles, ok := transitions[from][to]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r != actor.Role {
			continue
		}
		switch actor.Role {
		case RolePatient:
			return actor.ID == ap.PatientID
		case RoleDoctor:
			return actor.ID == ap.DoctorID
		default:
			return true
		}
	}
	return false
}
