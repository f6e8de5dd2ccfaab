package registry

import "errors"

var (
	ErrDuplicateRoom   = errors.New("room number already exists for this property")
	ErrInvalidRate     = errors.New("base rate must be greater than zero")
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	ErrNotFound        = errors.New("room not found")
	ErrValidation      = errors.New("room failed validation")
	ErrPropertyKind    = errors.New("rooms can only be added to hotels and lodges")
)
