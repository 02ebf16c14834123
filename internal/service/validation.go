package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// validate checks request DTOs with the same "binding" tags gin uses, so
// callers that bypass HTTP (the CLI) get identical rules.
var validate = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// parsePositiveAmount is strict on purpose: new money entering the ledger
// must be well formed, unlike historical rows which degrade to zero.
func parsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// actorID turns the staff id from the request into a nullable uuid.
func actorID(staffID string) *uuid.UUID {
	if parsed, err := uuid.Parse(staffID); err == nil {
		return &parsed
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC3339. Empty input yields fallback.
func parseDate(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD or RFC3339", ErrInvalidRequest, s)
	}
	return t, nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
