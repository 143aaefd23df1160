package call

import "fmt"

// CarrierStatus is a call progress status as delivered by the carrier's
// status callbacks.
type CarrierStatus string

const (
	StatusQueued     CarrierStatus = "queued"
	StatusRinging    CarrierStatus = "ringing"
	StatusInProgress CarrierStatus = "in-progress"
	StatusCompleted  CarrierStatus = "completed"
	StatusBusy       CarrierStatus = "busy"
	StatusFailed     CarrierStatus = "failed"
	StatusNoAnswer   CarrierStatus = "no-answer"
	StatusCanceled   CarrierStatus = "canceled"
)

// ParseCarrierStatus converts the carrier's CallStatus form value.
func ParseCarrierStatus(s string) (CarrierStatus, error) {
	switch CarrierStatus(s) {
	case StatusQueued, StatusRinging, StatusInProgress, StatusCompleted,
		StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		return CarrierStatus(s), nil
	}
	return "", fmt.Errorf("unknown carrier call status %q", s)
}

// Terminal reports whether the status ends the call at the carrier.
func (s CarrierStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}

// AnsweredBy is the carrier's answering-machine-detection result on a
// bridged leg.
type AnsweredBy string

const (
	AnsweredByHuman   AnsweredBy = "human"
	AnsweredByMachine AnsweredBy = "machine"
	AnsweredByUnknown AnsweredBy = "unknown"
)

// ParseAnsweredBy converts the carrier's AnsweredBy form value. Machine
// detection reports several machine_* variants; they all collapse to
// AnsweredByMachine. An empty or unrecognized value is AnsweredByUnknown.
func ParseAnsweredBy(s string) AnsweredBy {
	switch s {
	case "human":
		return AnsweredByHuman
	case "machine", "machine_start", "machine_end_beep", "machine_end_silence", "machine_end_other", "fax":
		return AnsweredByMachine
	}
	return AnsweredByUnknown
}

// Digit is a single DTMF keypad digit gathered during IVR.
type Digit byte

// ParseDigit converts the first character of the carrier's Digits form
// value. An empty string means the gather timed out; ok is false.
func ParseDigit(s string) (Digit, bool) {
	if s == "" {
		return 0, false
	}
	c := s[0]
	if (c >= '0' && c <= '9') || c == '*' || c == '#' {
		return Digit(c), true
	}
	return 0, false
}

func (d Digit) String() string {
	return string(byte(d))
}
