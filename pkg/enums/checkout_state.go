package enums

import "fmt"

// CheckoutState tracks a session's price reconciliation lifecycle.
type CheckoutState string

const (
	CheckoutStateIdle       CheckoutState = "idle"
	CheckoutStateSubmitting CheckoutState = "submitting"
	CheckoutStateSucceeded  CheckoutState = "succeeded"
	CheckoutStateFailed     CheckoutState = "failed"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateIdle,
	CheckoutStateSubmitting,
	CheckoutStateSucceeded,
	CheckoutStateFailed,
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state is an attempt outcome.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSucceeded || s == CheckoutStateFailed
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
