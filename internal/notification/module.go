// Package notification reacts to domain events with operator notifications.
// It subscribes to the event bus, so domain modules never touch email
// providers or templates directly.
package notification

import (
	"context"
	"fmt"

	"aileadgen_backend/internal/email"
	"aileadgen_backend/internal/events"
	"aileadgen_backend/platform/logger"
)

// Module listens for pipeline events and emails the sales operator.
type Module struct {
	sender        email.Sender
	operatorEmail string
	log           *logger.Logger
}

// NewModule creates the notification module. A nil sender (email disabled)
// turns every notification into a log line.
func NewModule(sender email.Sender, operatorEmail string, log *logger.Logger) *Module {
	return &Module{sender: sender, operatorEmail: operatorEmail, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// SubscribeToEvents registers this module's event subscriptions on the bus.
func (m *Module) SubscribeToEvents(bus events.Bus) {
	bus.Subscribe(events.LeadBooked{}.EventName(), m)
}

// Handle dispatches bus events to their notification handlers.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadBooked:
		return m.handleLeadBooked(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleLeadBooked(ctx context.Context, e events.LeadBooked) error {
	if m.sender == nil || m.operatorEmail == "" {
		m.log.Info("booking notification skipped, email disabled",
			"lead_id", e.LeadID.String(), "lead_name", e.LeadName)
		return nil
	}

	if err := m.sender.SendBookingConfirmation(ctx, m.operatorEmail, e.LeadName, e.LeadPhone); err != nil {
		return fmt.Errorf("booking confirmation for lead %s: %w", e.LeadID, err)
	}

	m.log.Info("booking notification sent",
		"lead_id", e.LeadID.String(), "operator", m.operatorEmail)
	return nil
}
