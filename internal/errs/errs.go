package errs

import (
	"errors"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidBet
	KindInsufficientFunds
	KindInactiveAccount
	KindTransientConflict
	KindEntropyUnavailable
	KindNotFound
	KindDuplicateSettlement
	KindGameUnavailable
	KindInvalidTransition
	KindInvalidRequest
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindInvalidBet:          "invalid_bet",
	KindInsufficientFunds:   "insufficient_funds",
	KindInactiveAccount:     "inactive_account",
	KindTransientConflict:   "transient_conflict",
	KindEntropyUnavailable:  "entropy_unavailable",
	KindNotFound:            "not_found",
	KindDuplicateSettlement: "duplicate_settlement",
	KindGameUnavailable:     "game_unavailable",
	KindInvalidTransition:   "invalid_transition",
	KindInvalidRequest:      "invalid_request",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Rejection reports whether the kind means the request was refused before
// any mutation and must be corrected by the caller, not retried.
func (k Kind) Rejection() bool {
	switch k {
	case KindInvalidBet, KindInsufficientFunds, KindInactiveAccount,
		KindNotFound, KindDuplicateSettlement, KindGameUnavailable, KindInvalidTransition,
		KindInvalidRequest:
		return true
	}
	return false
}

// Error is a classified sentinel. Wrap it with fmt.Errorf("...: %w", ErrX)
// to add detail; errors.Is keeps matching the sentinel.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidBet          = &Error{Kind: KindInvalidBet, Message: "invalid bet"}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInactiveAccount     = &Error{Kind: KindInactiveAccount, Message: "account is inactive"}
	ErrTransientConflict   = &Error{Kind: KindTransientConflict, Message: "concurrent update conflict, retry"}
	ErrEntropyUnavailable  = &Error{Kind: KindEntropyUnavailable, Message: "entropy source unavailable"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicateSettlement = &Error{Kind: KindDuplicateSettlement, Message: "round already settled"}
	ErrGameUnavailable     = &Error{Kind: KindGameUnavailable, Message: "game unavailable"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "transaction is not pending"}
	// ErrInvalidRequest covers bad account or deposit details that are not wagers.
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
)

// KindOf returns the kind of the first classified error in err's chain,
// or KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether resubmitting the whole operation with fresh
// state may succeed.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindTransientConflict
}

// IsRejection reports whether err is a caller-correctable refusal that
// left all balances untouched.
func IsRejection(err error) bool {
	return err != nil && KindOf(err).Rejection()
}
