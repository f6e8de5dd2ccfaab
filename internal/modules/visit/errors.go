package visit

import "errors"

var (
	ErrNotFound      = errors.New("property or visit payment not found")
	ErrNotGated      = errors.New("property does not charge for visit access")
	ErrAlreadyActive = errors.New("visit access is already active")
	ErrUnauthorised  = errors.New("caller lacks the required role")
)
