// Package call defines the domain types for a receptionist call session:
// lifecycle states, consent outcomes, answer modes, and the carrier-facing
// value parsing. Carrier strings are converted into these closed types at
// the webhook boundary so invalid transitions surface as parse errors
// rather than stray string comparisons.
package call

import (
	"fmt"
	"regexp"
)

// State is a call session lifecycle state.
type State string

const (
	StateIncoming       State = "incoming"
	StateBridging       State = "bridging"
	StateAssisted       State = "assisted"
	StateConsentPending State = "consent_pending"
	StateRouted         State = "routed"
	StateInProgress     State = "in_progress"
	StateCompleted      State = "completed"
	StateOptedOut       State = "opted_out"
)

// stateRank orders states for monotonicity checks. A transition to a
// lower-ranked state moves the call backward and is rejected.
var stateRank = map[State]int{
	StateIncoming:       0,
	StateBridging:       1,
	StateAssisted:       1,
	StateConsentPending: 2,
	StateRouted:         3,
	StateInProgress:     4,
	StateCompleted:      5,
	StateOptedOut:       5,
}

// ParseState converts a stored state string into a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if _, ok := stateRank[st]; !ok {
		return "", fmt.Errorf("unknown call state %q", s)
	}
	return st, nil
}

// Terminal reports whether the state ends the session lifecycle.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateOptedOut
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Re-entering the same terminal state is allowed so redelivered
// terminal callbacks can be treated as no-ops by the caller.
func (s State) CanTransition(next State) bool {
	from, ok := stateRank[s]
	if !ok {
		return false
	}
	to, ok := stateRank[next]
	if !ok {
		return false
	}
	if s.Terminal() {
		return s == next
	}
	return to > from
}

// ConsentStatus is the terminal outcome of the recording-consent gather.
type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "granted"
	ConsentDenied  ConsentStatus = "denied"
	ConsentTimeout ConsentStatus = "timeout"
)

// ParseConsentStatus converts a stored consent status string.
func ParseConsentStatus(s string) (ConsentStatus, error) {
	switch ConsentStatus(s) {
	case ConsentGranted, ConsentDenied, ConsentTimeout:
		return ConsentStatus(s), nil
	}
	return "", fmt.Errorf("unknown consent status %q", s)
}

// Mode is how the call is being answered. Once set it never changes for
// the remainder of the call.
type Mode string

const (
	ModeBridge   Mode = "bridge"
	ModeAssisted Mode = "assisted"
)

// Route is the destination a routed call was sent to.
type Route string

const (
	RouteLine      Route = "line"
	RouteVoicemail Route = "voicemail"
	RouteIntake    Route = "intake"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidE164 reports whether number is a well-formed E.164 phone number.
func ValidE164(number string) bool {
	return e164Pattern.MatchString(number)
}
