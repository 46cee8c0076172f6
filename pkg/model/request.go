package model

import (
	"time"
)

// Status is the closed booking request lifecycle enum.
type Status string

const (
	// StatusPending awaits a human or bulk-strategy decision because a
	// conflict existed at creation time.
	StatusPending Status = "pending"
	// StatusAutoBooked was committed without approval because no conflict
	// existed at creation time. Still actionable via vacate/leave links.
	StatusAutoBooked Status = "auto_booked"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	// StatusLeft means the requester confirmed an auto-booked slot; the
	// reservation stays committed and the action link is spent.
	StatusLeft Status = "left"
	// StatusVacated means the requester released an auto-booked slot early;
	// its reservation was removed.
	StatusVacated Status = "vacated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAutoBooked, StatusApproved, StatusRejected, StatusLeft, StatusVacated:
		return true
	}
	return false
}

// Actionable reports whether an unauthenticated action link may still act on
// a request in this status. Only actionable requests carry a live token.
func (s Status) Actionable() bool {
	return s == StatusPending || s == StatusAutoBooked
}

func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusLeft, StatusVacated:
		return true
	}
	return false
}

// BookingRequest is a requester's ask for a hall reservation. The hall is
// referenced by name; HallKey is the normalized form used for every lookup.
type BookingRequest struct {
	ID          string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	HallName    string     `json:"hall_name" bson:"hall_name" validate:"required,min=2,max=100"`
	HallKey     string     `json:"-" bson:"hall_key"`
	RequesterID string     `json:"requester_id" bson:"requester_id" validate:"required,min=1,max=100"`
	Label       string     `json:"label" bson:"label" validate:"required,min=2,max=100"`
	Description string     `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	Start       time.Time  `json:"start_time" bson:"start_time" validate:"required"`
	End         time.Time  `json:"end_time" bson:"end_time" validate:"required,gtfield=Start"`
	Status      Status     `json:"status" bson:"status"`
	Token       string     `json:"-" bson:"token,omitempty"`
	TokenExpiry *time.Time `json:"-" bson:"token_expiry,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}
