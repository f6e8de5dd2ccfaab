package booking

import "errors"

var (
	ErrNotAvailable      = errors.New("property or room is not available for the requested interval")
	ErrInvalidInterval   = errors.New("check-out must be after check-in")
	ErrRoomRequired      = errors.New("room number is required for hotel and lodge bookings")
	ErrRoomNotFound      = errors.New("room not found for this property")
	ErrIllegalTransition = errors.New("booking state machine rejected the transition")
	ErrNotFound          = errors.New("booking not found")
	ErrUnauthorised      = errors.New("caller lacks the required role")
	ErrValidation        = errors.New("validation error")
	ErrTotalBelowPaid    = errors.New("total amount cannot drop below the paid amount")
)
