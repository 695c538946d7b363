// Package domain holds the lead pipeline vocabulary: lead statuses, call
// outcomes, and the rules tying them together.
package domain

// LeadStatus is the position of a lead in the calling pipeline.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusCalled      LeadStatus = "called"
	LeadStatusBooked      LeadStatus = "booked"
	LeadStatusCallback    LeadStatus = "callback"
	LeadStatusNotAnswered LeadStatus = "not_answered"
	LeadStatusFailed      LeadStatus = "failed"
)

// CallOutcome is the terminal result of a single call attempt.
type CallOutcome string

const (
	OutcomeBooked      CallOutcome = "booked"
	OutcomeNotAnswered CallOutcome = "not_answered"
	OutcomeCallback    CallOutcome = "callback"
	OutcomeFailed      CallOutcome = "failed"
	OutcomeCompleted   CallOutcome = "completed"
	OutcomeBusy        CallOutcome = "busy"
)

// ProcessingStatus tracks whether a call log entry has been reconciled.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingCompleted ProcessingStatus = "completed"
)

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusCalled, LeadStatusBooked,
		LeadStatusCallback, LeadStatusNotAnswered, LeadStatusFailed:
		return true
	}
	return false
}

// ValidOutcome reports whether o is a known call outcome.
func ValidOutcome(o CallOutcome) bool {
	switch o {
	case OutcomeBooked, OutcomeNotAnswered, OutcomeCallback,
		OutcomeFailed, OutcomeCompleted, OutcomeBusy:
		return true
	}
	return false
}

// MapOutcome translates a reconciled call outcome into the lead status it
// drives. booked/not_answered/callback/failed map onto themselves. A call that
// merely completed, or hit a busy line, counts as not answered: only an
// explicit booking confirmation moves a lead to booked.
func MapOutcome(o CallOutcome) LeadStatus {
	switch o {
	case OutcomeBooked:
		return LeadStatusBooked
	case OutcomeCallback:
		return LeadStatusCallback
	case OutcomeFailed:
		return LeadStatusFailed
	case OutcomeNotAnswered, OutcomeCompleted, OutcomeBusy:
		return LeadStatusNotAnswered
	}
	return LeadStatusNotAnswered
}

// Dialable reports whether a lead in status s is eligible for a new dispatch
// under the default selection policy. callback and not_answered re-enter the
// loop; booked and failed are terminal; called means a call is in flight.
func Dialable(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusCallback, LeadStatusNotAnswered:
		return true
	}
	return false
}
