package errors

import "errors"

var (
	ErrNotFound = errors.New("hall not found")

	ErrDuplicateName = errors.New("hall with this name already exists")

	// ErrVersionConflict means the hall document changed between the
	// conflict check and the reservation write. Callers retry with a fresh
	// read.
	ErrVersionConflict = errors.New("hall version conflict")

	ErrReservationNotFound = errors.New("reservation not found on hall")
)
