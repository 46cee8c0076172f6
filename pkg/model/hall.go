package model

import (
	"time"
)

// Availability values derived from a hall's reservation list at read time.
// Never persisted as source of truth.
const (
	HallFree   = "FREE"
	HallBooked = "BOOKED"
)

// Reservation is a committed, time-bounded occupation of a hall over the
// half-open interval [Start, End). Reservations within one hall are pairwise
// non-overlapping; they are only ever written by the booking service on
// commit or release, never directly by a client.
type Reservation struct {
	ReservationID   string    `json:"reservation_id" bson:"reservation_id"`
	RequesterID     string    `json:"requester_id" bson:"requester_id"`
	Label           string    `json:"label" bson:"label"`
	Start           time.Time `json:"start_time" bson:"start_time"`
	End             time.Time `json:"end_time" bson:"end_time"`
	SourceRequestID string    `json:"source_request_id,omitempty" bson:"source_request_id,omitempty"`
}

type Hall struct {
	ID   string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	// NameKey is the normalized lowercase join key. Requests reference halls
	// by name; every lookup goes through NameKey so matching is
	// case-insensitive on all paths.
	NameKey      string        `json:"-" bson:"name_key"`
	Capacity     int           `json:"capacity" bson:"capacity" validate:"required,min=1,max=2000"`
	Version      int64         `json:"-" bson:"version"`
	Reservations []Reservation `json:"reservations" bson:"reservations"`
	// Occupied is recomputed by the cleanup sweep from the remaining
	// reservations. Live availability is always derived via Availability.
	Occupied  bool      `json:"occupied" bson:"occupied"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Availability reports FREE or BOOKED as of the given instant.
func (h *Hall) Availability(now time.Time) string {
	for _, r := range h.Reservations {
		if !now.Before(r.Start) && now.Before(r.End) {
			return HallBooked
		}
	}
	return HallFree
}

type HallView struct {
	Hall
	Status string `json:"status"`
}
