package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrDuplicateID = errors.New("reservation with this ID already exists")

	ErrTimeConflict = errors.New("reservation period conflicts with an existing reservation")

	ErrCapacityExceeded = errors.New("lane capacity exceeded")
)
