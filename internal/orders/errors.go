package orders

import (
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
)

// OpinionExistsError is returned when an order already carries an opinion.
// It classifies as apperr.ErrConflict and exposes the stored opinion so the
// caller can treat a repeated request as already applied.
type OpinionExistsError struct {
	Opinion Opinion
}

func (e *OpinionExistsError) Error() string {
	return fmt.Sprintf("opinion for order %d already exists", e.Opinion.OrderID)
}

func (e *OpinionExistsError) Unwrap() error { return apperr.ErrConflict }
