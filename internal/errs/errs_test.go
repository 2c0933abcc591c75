package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("settle user 7: %w", ErrInsufficientFunds)

	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("errors.Is lost the sentinel: %v", err)
	}
	if got := KindOf(err); got != KindInsufficientFunds {
		t.Fatalf("KindOf = %v, want %v", got, KindInsufficientFunds)
	}
	if !IsRejection(err) {
		t.Error("insufficient funds should be a rejection")
	}
	if Retryable(err) {
		t.Error("insufficient funds must not be retryable")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		rejection bool
		retryable bool
	}{
		{"invalid bet", ErrInvalidBet, KindInvalidBet, true, false},
		{"inactive", ErrInactiveAccount, KindInactiveAccount, true, false},
		{"invalid request", fmt.Errorf("username taken: %w", ErrInvalidRequest), KindInvalidRequest, true, false},
		{"conflict", fmt.Errorf("attempt 3: %w", ErrTransientConflict), KindTransientConflict, false, true},
		{"entropy", ErrEntropyUnavailable, KindEntropyUnavailable, false, false},
		{"plain error", errors.New("disk on fire"), KindInternal, false, false},
		{"nil", nil, KindInternal, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if got := IsRejection(tt.err); got != tt.rejection {
				t.Errorf("IsRejection = %v, want %v", got, tt.rejection)
			}
			if got := Retryable(tt.err); got != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if KindTransientConflict.String() != "transient_conflict" {
		t.Errorf("got %q", KindTransientConflict.String())
	}
	if KindInvalidRequest.String() != "invalid_request" {
		t.Errorf("got %q", KindInvalidRequest.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("got %q", Kind(99).String())
	}
}
