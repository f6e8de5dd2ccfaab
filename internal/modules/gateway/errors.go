package gateway

import "errors"

var (
	ErrGatewayFailure    = errors.New("payment gateway rejected or failed the request")
	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrPhoneRequired     = errors.New("a payer phone number is required")
	ErrUnsupportedMethod = errors.New("unsupported gateway payment method")
	ErrNotFound          = errors.New("gateway transaction not found")
)
