package models

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidID                 = errors.New("invalid id")
	ErrUnauthenticated           = errors.New("unauthenticated")
	ErrForbidden                 = errors.New("forbidden")
	ErrInvalidState              = errors.New("invalid state")
	ErrValidation                = errors.New("validation error")
	ErrAlreadyExists             = errors.New("already exists")
	ErrAlreadyMarked             = errors.New("already marked complete")
	ErrAlreadyAssessed           = errors.New("reputation already assessed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrConflict                  = errors.New("conflict")
	ErrDuplicateReputationEvent  = errors.New("duplicate reputation event")

	// ErrStaleWrite is returned by conditional updates whose precondition no
	// longer holds at write time.
	ErrStaleWrite = errors.New("stale write")
)
