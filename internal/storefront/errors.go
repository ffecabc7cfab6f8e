package storefront

import (
	"errors"
	"fmt"
)

// Transaction-level failures surfaced by the fulfillment stores. Both
// abort the purchase transaction; the flow maps them back to buyer-facing
// views after the rollback.
var (
	// ErrInsufficientFunds is returned by the guarded balance debit when
	// the buyer's balance dropped below the charge after the pre-check.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAllocationRace is returned when row locking could not secure the
	// requested quantity because concurrent purchases won the items.
	ErrAllocationRace = errors.New("allocation lost race for stock")
)

// MalformedTokenError reports callback data that does not match the token
// schema, or a decoded token whose fields are invalid for the step that
// received it.
type MalformedTokenError struct {
	Raw    string
	Reason string
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed token %q: %s", e.Raw, e.Reason)
}

// Code implements the error-code contract used by handler summary logs.
func (e *MalformedTokenError) Code() string { return "MALFORMED_TOKEN" }

// UnknownStepError reports a syntactically valid token whose step value
// has no handler.
type UnknownStepError struct {
	Step Step
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown wizard step %d", int(e.Step))
}

// Code implements the error-code contract used by handler summary logs.
func (e *UnknownStepError) Code() string { return "UNKNOWN_STEP" }
