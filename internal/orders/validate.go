package orders

import (
	"regexp"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// phonePattern accepts an optional leading "+", an optional country prefix,
// one optional parenthesised area code and digit groups separated by single
// spaces, dots or dashes. The digit count is checked separately.
var phonePattern = regexp.MustCompile(`^\+?\d{0,4}[ .-]?(\(\d{1,4}\)[ .-]?)?\d(?:[ .-]?\d)*$`)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15

	opinionDateWindow = 7 * 24 * time.Hour
)

// validateOrderHeader runs the header checks of an order request in order and
// resolves the initial status.
func validateOrderHeader(in CreateOrderInput) (Status, error) {
	if in.Username == "" || in.Email == "" || in.PhoneNumber == "" || len(in.Items) == 0 {
		return 0, apperr.Validation("missing required fields: username, email, phone_number, items")
	}
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.PhoneNumber) == "" {
		return 0, apperr.Validation("username, email and phone_number must be non-empty strings")
	}
	if !ValidEmail(in.Email) {
		return 0, apperr.Validation("invalid email address")
	}
	if !ValidPhone(in.PhoneNumber) {
		return 0, apperr.Validation("invalid phone number")
	}

	if in.StatusID == nil {
		return StatusUnconfirmed, nil
	}
	s, ok := ParseStatus(*in.StatusID)
	if !ok {
		return 0, apperr.NotFound("status id=%d not found", *in.StatusID)
	}
	return s, nil
}

func validateItemShape(i int, it ItemInput) error {
	if it.ProductID <= 0 || it.Amount <= 0 {
		return apperr.Validation("items[%d]: productId and amount must be positive integers", i)
	}
	if it.UnitPrice != nil && it.UnitPrice.IsNegative() {
		return apperr.Validation("items[%d]: unit_price must be a non-negative number", i)
	}
	if it.UnitPrice != nil && !catalog.PriceFits(*it.UnitPrice) {
		return apperr.Validation("items[%d]: unit_price must have at most 2 decimal places and be below %s", i, catalog.MaxUnitPrice)
	}
	return nil
}

func validateOpinion(in OpinionInput, now time.Time) error {
	if in.Rating < 1 || in.Rating > 5 {
		return apperr.Validation("rating must be an integer between 1 and 5")
	}
	if strings.TrimSpace(in.Content) == "" {
		return apperr.Validation("content cannot be an empty string")
	}
	if in.OpinionDate != nil {
		d := in.OpinionDate.Sub(now)
		if d < 0 {
			d = -d
		}
		if d > opinionDateWindow {
			return apperr.Validation("opinion_date must be within one week of the current date")
		}
	}
	return nil
}

func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

func ValidPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}
