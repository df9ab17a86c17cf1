package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrPlantNotFound = errors.New("plant not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// InsufficientStockError is returned when a dispatch asks for more than the plant holds.
type InsufficientStockError struct {
	Code      string
	Current   float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: have %g, requested %g", e.Code, e.Current, e.Requested)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
