package repository

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{
			name:     "configuration",
			err:      NewConfigurationError("no database for %s", "Order"),
			sentinel: ErrConfiguration,
			message:  "configuration error: no database for Order",
		},
		{
			name:     "validation with field",
			err:      NewValidationError("page_size", "must not be negative, got %d", -1),
			sentinel: ErrValidation,
			message:  "validation error: page_size: must not be negative, got -1",
		},
		{
			name:     "validation without field",
			err:      NewValidationError("", "bad input"),
			sentinel: ErrValidation,
			message:  "validation error: bad input",
		},
		{
			name:     "state",
			err:      NewStateError("no partition bound"),
			sentinel: ErrState,
			message:  "state error: no partition bound",
		},
	}

	sentinels := []error{ErrConfiguration, ErrValidation, ErrState}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.message {
				t.Fatalf("Error() = %q, want %q", tt.err.Error(), tt.message)
			}
			wrapped := fmt.Errorf("resolve: %w", tt.err)
			for _, s := range sentinels {
				if got := errors.Is(wrapped, s); got != (s == tt.sentinel) {
					t.Fatalf("errors.Is(%v) = %v", s, got)
				}
			}
		})
	}
}
