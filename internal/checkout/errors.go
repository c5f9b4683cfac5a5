package checkout

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindMissingAddress   Kind = "MISSING_ADDRESS"
	KindSetupNotApproved Kind = "SETUP_NOT_APPROVED"
	KindIntentClosed     Kind = "INTENT_CLOSED"
	KindUnknownProduct   Kind = "UNKNOWN_PRODUCT"
	KindInvalidInput     Kind = "INVALID_INPUT"
)

var (
	ErrIntentNotFound = errors.New("intent not found")
	// ErrSettlementPending means the processor accepted the finalize call but
	// has not decided the outcome. The intent stays open and may be finalized
	// again.
	ErrSettlementPending = errors.New("settlement pending")
)

// PendingError carries the processor status of an undecided finalize.
type PendingError struct {
	IntentID  string
	RawStatus string
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("%s: intent %s reported %s", ErrSettlementPending, e.IntentID, e.RawStatus)
}

func (e *PendingError) Unwrap() error { return ErrSettlementPending }

// ValidationError is a request the buyer or storefront can correct. No remote
// call was made.
type ValidationError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a ValidationError of the given kind.
func IsKind(err error, kind Kind) bool {
	var v *ValidationError
	return errors.As(err, &v) && v.Kind == kind
}
