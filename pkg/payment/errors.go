package payment

import (
	"errors"
	"fmt"
)

// User-visible failure taxonomy. Handlers map these to structured 400/403
// bodies; raw provider error text never reaches clients.
var (
	ErrPaymentFailed     = errors.New("payment failed, try again or use a different method")
	ErrCardDeclined      = errors.New("card payment failed, try again or use a different method")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicatedPayment = errors.New("duplicated payment")
	ErrMethodInvalid     = errors.New("invalid payment method, try a different one")
	ErrPermissionDenied  = errors.New("payment method does not belong to this user")
)

// CardError is a provider card decline. DeclineCode and Reason are kept for
// the Payment audit row only; Unwrap selects the user-visible sentinel.
type CardError struct {
	DeclineCode string
	Reason      string
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card declined (%s)", e.DeclineCode)
}

func (e *CardError) Unwrap() error {
	if e.DeclineCode == "insufficient_funds" {
		return ErrInsufficientFunds
	}
	return ErrCardDeclined
}
