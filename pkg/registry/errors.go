package registry

import "errors"

// Errors returned by the registry operations. Failed operations never change
// the registry state.
var (
	// ErrInsufficientFee is returned when the attached payment is less than
	// the current price.
	ErrInsufficientFee = errors.New("insufficient fee")
	// ErrNameAlreadyRegistered is returned on an attempt to register a name
	// that has an unexpired record.
	ErrNameAlreadyRegistered = errors.New("name already registered")
	// ErrNameNotFound is returned for names that were never registered.
	ErrNameNotFound = errors.New("name not found")
	// ErrNotOwner is returned when the caller is not the owner of the name.
	ErrNotOwner = errors.New("not owner")
	// ErrInvalidAddress is returned for zero account identifiers where an
	// account is required.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNotAdmin is returned when an admin operation is called by some
	// other account.
	ErrNotAdmin = errors.New("not admin")
	// ErrInvalidName is returned for empty or too long names.
	ErrInvalidName = errors.New("invalid name")
	// ErrOverflow is returned when the expiration time or the accumulated
	// balance can't be represented anymore.
	ErrOverflow = errors.New("overflow")
)
