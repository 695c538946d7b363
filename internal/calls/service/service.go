// Package service orchestrates outbound call attempts and reconciles their
// outcomes back onto leads.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"aileadgen_backend/internal/calls/repository"
	"aileadgen_backend/internal/calls/transport"
	"aileadgen_backend/internal/events"
	"aileadgen_backend/internal/leads/domain"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/internal/retell"
	"aileadgen_backend/platform/apperr"
	"aileadgen_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the call service.
type Repository interface {
	CreatePending(ctx context.Context, leadID uuid.UUID, agentVersion string) (repository.CallLog, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, providerCallID string) (repository.CallLog, error)
	MarkDispatchFailed(ctx context.Context, id uuid.UUID) error
	Finalize(ctx context.Context, params repository.FinalizeParams) (repository.CallLog, leadsrepo.Lead, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.CallLog, error)
	ListRecent(ctx context.Context, limit int) ([]repository.CallLog, error)
	ListStuckPending(ctx context.Context, cutoff time.Time) ([]repository.CallLog, error)
}

// LeadReader is the slice of the leads repository the dispatcher needs.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
}

// Provider places outbound calls with the external calling vendor.
type Provider interface {
	PlaceCall(ctx context.Context, params retell.PlaceCallParams) (string, error)
}

// Config carries the per-deployment call settings.
type Config struct {
	AgentID      string
	AgentVersion string
}

type Service struct {
	repo     Repository
	leads    LeadReader
	provider Provider
	bus      events.Bus
	log      *logger.Logger
	cfg      Config
}

func New(repo Repository, leads LeadReader, provider Provider, bus events.Bus, log *logger.Logger, cfg Config) *Service {
	if cfg.AgentVersion == "" {
		cfg.AgentVersion = "1.0.0"
	}
	return &Service{repo: repo, leads: leads, provider: provider, bus: bus, log: log, cfg: cfg}
}

// Dispatch starts an outbound call for the lead. It reserves the lead with a
// pending call log before talking to the provider, so two concurrent
// dispatches for the same lead cannot both place a call: the loser gets a
// Conflict and writes nothing.
func (s *Service) Dispatch(ctx context.Context, leadID uuid.UUID) (transport.CallLogResponse, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, leadsrepo.ErrNotFound) {
			return transport.CallLogResponse{}, apperr.NotFound("lead not found")
		}
		return transport.CallLogResponse{}, err
	}

	entry, err := s.repo.CreatePending(ctx, lead.ID, s.cfg.AgentVersion)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPendingExists):
			return transport.CallLogResponse{}, apperr.Conflict("a call for this lead is already in progress")
		case errors.Is(err, repository.ErrLeadNotFound):
			return transport.CallLogResponse{}, apperr.NotFound("lead not found")
		}
		return transport.CallLogResponse{}, err
	}

	providerCallID, err := s.provider.PlaceCall(ctx, retell.PlaceCallParams{
		ToNumber: lead.PhoneNumber,
		AgentID:  s.cfg.AgentID,
		DynamicVariables: map[string]string{
			"lead_name":     lead.Name,
			"lead_timezone": lead.Timezone,
			"lead_notes":    lead.Notes,
		},
	})
	if err != nil {
		// Close the reservation so the lead is not blocked by a call that
		// never went out. The lead row itself stays as it was.
		if failErr := s.repo.MarkDispatchFailed(ctx, entry.ID); failErr != nil {
			s.log.Error("failed to close undispatched call log",
				"call_log_id", entry.ID.String(), "error", failErr)
		}
		if errors.Is(err, retell.ErrUnavailable) {
			return transport.CallLogResponse{}, apperr.Upstream("calling provider is unreachable")
		}
		var apiErr *retell.APIError
		if errors.As(err, &apiErr) {
			return transport.CallLogResponse{}, apperr.Upstream("calling provider rejected the call")
		}
		return transport.CallLogResponse{}, err
	}

	entry, err = s.repo.MarkDispatched(ctx, entry.ID, providerCallID)
	if err != nil {
		return transport.CallLogResponse{}, err
	}

	s.log.CallEvent("call.dispatched", lead.ID.String(), entry.ID.String())
	if s.bus != nil {
		s.bus.Publish(ctx, events.CallDispatched{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			CallLogID:      entry.ID,
			ProviderCallID: providerCallID,
		})
	}

	return transport.ToCallLogResponse(entry), nil
}

// ReconcileResult reports what reconciliation did.
type ReconcileResult struct {
	CallLog           transport.CallLogResponse
	LeadStatus        domain.LeadStatus
	AlreadyReconciled bool
}

// Reconcile applies a terminal call outcome to the pending call log and its
// lead. Replayed deliveries for the same provider call id return the already
// finalized entry without touching either row.
func (s *Service) Reconcile(ctx context.Context, req transport.CallStatusWebhook) (ReconcileResult, error) {
	outcome := domain.CallOutcome(req.Outcome)
	if !domain.ValidOutcome(outcome) {
		return ReconcileResult{}, apperr.Validation("unknown call outcome")
	}

	transcript := []byte("[]")
	if len(req.Transcript) > 0 {
		encoded, err := json.Marshal(req.Transcript)
		if err != nil {
			return ReconcileResult{}, apperr.Validation("transcript is not encodable")
		}
		transcript = encoded
	}

	leadStatus := domain.MapOutcome(outcome)
	entry, lead, err := s.repo.Finalize(ctx, repository.FinalizeParams{
		ProviderCallID: req.ProviderCallID,
		Outcome:        outcome,
		Transcript:     transcript,
		RecordingURL:   req.RecordingURL,
		DurationSec:    req.DurationSec,
		LeadStatus:     leadStatus,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyFinalized):
			return ReconcileResult{
				CallLog:           transport.ToCallLogResponse(entry),
				AlreadyReconciled: true,
			}, nil
		case errors.Is(err, repository.ErrNotFound):
			return ReconcileResult{}, apperr.NotFound("no call log for provider call id")
		}
		return ReconcileResult{}, err
	}

	s.log.CallEvent("call.reconciled", lead.ID.String(), entry.ID.String())
	if s.bus != nil {
		recordingURL := ""
		if entry.RecordingURL != nil {
			recordingURL = *entry.RecordingURL
		}
		s.bus.Publish(ctx, events.CallReconciled{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       lead.ID,
			CallLogID:    entry.ID,
			Outcome:      string(outcome),
			LeadStatus:   string(lead.Status),
			RecordingURL: recordingURL,
		})
		if lead.Status == domain.LeadStatusBooked {
			s.bus.Publish(ctx, events.LeadBooked{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				LeadName:  lead.Name,
				LeadPhone: lead.PhoneNumber,
			})
		}
	}

	return ReconcileResult{
		CallLog:    transport.ToCallLogResponse(entry),
		LeadStatus: lead.Status,
	}, nil
}

// ListByLead returns the lead's call history. Unknown leads are a NotFound
// rather than an empty list.
func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) ([]transport.CallLogResponse, error) {
	if _, err := s.leads.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, leadsrepo.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}
	entries, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return transport.ToCallLogResponses(entries), nil
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]transport.CallLogResponse, error) {
	entries, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return transport.ToCallLogResponses(entries), nil
}

// SweepStuck reconciles pending call logs older than maxAge as failed. Calls
// that were dispatched but whose status event never arrived go through the
// normal reconcile path under their provider call id; reservations that never
// reached the provider are closed directly.
func (s *Service) SweepStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	entries, err := s.repo.ListStuckPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, entry := range entries {
		if entry.ProviderCallID == nil {
			if err := s.repo.MarkDispatchFailed(ctx, entry.ID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					continue // finalized between listing and sweep
				}
				return swept, err
			}
			s.log.CallEvent("call.swept", entry.LeadID.String(), entry.ID.String())
			swept++
			continue
		}

		result, err := s.Reconcile(ctx, transport.CallStatusWebhook{
			ProviderCallID: *entry.ProviderCallID,
			Outcome:        string(domain.OutcomeFailed),
		})
		if err != nil {
			return swept, err
		}
		if !result.AlreadyReconciled {
			s.log.CallEvent("call.swept", entry.LeadID.String(), entry.ID.String())
			swept++
		}
	}

	return swept, nil
}
