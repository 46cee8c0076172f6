package service

import (
	"errors"
	"time"

	"hallbook/pkg/model"
)

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect. Touching intervals (endA == startB) do not
// conflict, so back-to-back bookings are legal.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && endA.After(startB)
}

// ValidateInterval rejects zero-length, inverted and unset intervals.
// Callers must validate before running conflict queries; the queries
// themselves assume well-formed input.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.New("interval bounds are required")
	}
	if !end.After(start) {
		return errors.New("end time must be after start time")
	}
	return nil
}

// ConflictingReservations returns the committed reservations that overlap
// the candidate window.
func ConflictingReservations(reservations []model.Reservation, start, end time.Time) []model.Reservation {
	var conflicts []model.Reservation
	for _, r := range reservations {
		if Overlaps(r.Start, r.End, start, end) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}

// HasCommittedConflict reports whether the candidate window overlaps any
// committed reservation on the hall.
func HasCommittedConflict(hall *model.Hall, start, end time.Time) bool {
	return len(ConflictingReservations(hall.Reservations, start, end)) > 0
}

// HasSiblingConflict reports whether the candidate overlaps another pending
// request for the same hall. Pending requests are not committed, so this is
// advisory; it only feeds the bulk engine's "safe" classification.
func HasSiblingConflict(candidate *model.BookingRequest, siblings []*model.BookingRequest) bool {
	for _, s := range siblings {
		if s.ID == candidate.ID {
			continue
		}
		if s.HallKey != candidate.HallKey {
			continue
		}
		if s.Status != model.StatusPending {
			continue
		}
		if Overlaps(s.Start, s.End, candidate.Start, candidate.End) {
			return true
		}
	}
	return false
}
