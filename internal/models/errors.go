package models

import "errors"

var (
	// ErrDuplicateEmail is returned when creating a user with an email
	// that is already taken.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrInvalidUserID is returned when a user id is not a valid hex
	// object id.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrCarLimitExceeded is returned when a user already holds the
	// maximum number of cars.
	ErrCarLimitExceeded = errors.New("car limit reached")

	// ErrInvalidCarID is returned when no user owns a car with the
	// given id.
	ErrInvalidCarID = errors.New("no user found for car id")
)
