package ledger

import "errors"

var (
	ErrOverpayment      = errors.New("payment would exceed the booking total")
	ErrInsufficientPaid = errors.New("refund exceeds the settled paid amount")
	ErrReceiptRequired  = errors.New("cash payments require an uploaded receipt")
	ErrProviderRequired = errors.New("mobile money payments require a provider")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrBookingClosed    = errors.New("booking no longer accepts payments")
	ErrNotFound         = errors.New("payment or booking not found")
	ErrUnauthorised     = errors.New("caller lacks the required role")
)
