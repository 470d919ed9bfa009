package errors

import "errors"

var (
	ErrPoolNotFound = errors.New("pool not found")

	ErrLaneNotFound = errors.New("lane not found")

	ErrLockerNotFound = errors.New("locker not found")

	ErrClosureNotFound = errors.New("closure not found")

	ErrDuplicateID = errors.New("resource with this ID already exists")
)
