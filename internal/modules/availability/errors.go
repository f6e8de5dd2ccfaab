package availability

import "errors"

var (
	ErrInvalidInterval = errors.New("check-out must be after check-in")
	ErrNotFound        = errors.New("property not found")
)
