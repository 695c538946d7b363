// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"aileadgen_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the pipeline.
type LeadCreated struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// =============================================================================
// Calls Domain Events
// =============================================================================

// CallDispatched is published after a call attempt is handed to the provider.
type CallDispatched struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	CallLogID      uuid.UUID `json:"callLogId"`
	ProviderCallID string    `json:"providerCallId"`
}

func (e CallDispatched) EventName() string { return "calls.call.dispatched" }

// CallReconciled is published after a call outcome has been applied to the
// call log and the owning lead.
type CallReconciled struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	CallLogID    uuid.UUID `json:"callLogId"`
	Outcome      string    `json:"outcome"`
	LeadStatus   string    `json:"leadStatus"`
	RecordingURL string    `json:"recordingUrl,omitempty"`
}

func (e CallReconciled) EventName() string { return "calls.call.reconciled" }

// LeadBooked is published when reconciliation lands a lead on booked.
type LeadBooked struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	LeadName  string    `json:"leadName"`
	LeadPhone string    `json:"leadPhone"`
}

func (e LeadBooked) EventName() string { return "calls.lead.booked" }
