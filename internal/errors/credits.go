package errors

import (
	"errors"
	"fmt"
)

// ErrInsufficientCredits is the one failure kind that changes session behavior:
// it always triggers the credit purchase hand-off. Maps to HTTP 402.
var ErrInsufficientCredits = errors.New("insufficient credits")

var ErrCreditAccountNotFound = errors.New("credit account not found")

// CreditShortfallError carries the numbers behind an insufficient-credits failure.
type CreditShortfallError struct {
	Required int `json:"required"`
	Balance  int `json:"balance"`
}

func (e *CreditShortfallError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Balance)
}

func (e *CreditShortfallError) Unwrap() error {
	return ErrInsufficientCredits
}

func NewCreditShortfall(required, balance int) *CreditShortfallError {
	return &CreditShortfallError{Required: required, Balance: balance}
}

func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}
