// Package service runs campaign lifecycles and the dial loop that feeds
// campaign members to the call dispatcher.
package service

import (
	"context"
	"errors"

	callstransport "aileadgen_backend/internal/calls/transport"
	"aileadgen_backend/internal/campaigns/repository"
	"aileadgen_backend/internal/campaigns/transport"
	"aileadgen_backend/internal/leads/domain"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/platform/apperr"
	"aileadgen_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the campaign service.
type Repository interface {
	Create(ctx context.Context, name, agentID string, leadIDs []uuid.UUID) (repository.Campaign, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	List(ctx context.Context) ([]repository.Campaign, error)
	SetStatus(ctx context.Context, id uuid.UUID, status repository.CampaignStatus) (repository.Campaign, error)
	ListRunning(ctx context.Context) ([]uuid.UUID, error)
	NextUndialed(ctx context.Context, campaignID uuid.UUID) (uuid.UUID, error)
}

// Dialer hands a lead to the call dispatcher.
type Dialer interface {
	Dispatch(ctx context.Context, leadID uuid.UUID) (callstransport.CallLogResponse, error)
}

// LeadReader checks member eligibility before dialing.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
}

type Service struct {
	repo   Repository
	dialer Dialer
	leads  LeadReader
	log    *logger.Logger
}

func New(repo Repository, dialer Dialer, leads LeadReader, log *logger.Logger) *Service {
	return &Service{repo: repo, dialer: dialer, leads: leads, log: log}
}

// Create registers a campaign in status created. Leads keep their own
// lifecycle; the campaign only orders them for dialing.
func (s *Service) Create(ctx context.Context, req transport.CreateCampaignRequest) (transport.CampaignResponse, error) {
	leadIDs := make([]uuid.UUID, 0, len(req.LeadIDs))
	seen := make(map[uuid.UUID]struct{}, len(req.LeadIDs))
	for _, raw := range req.LeadIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return transport.CampaignResponse{}, apperr.Validation("lead_ids contains an invalid id")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		leadIDs = append(leadIDs, id)
	}

	campaign, err := s.repo.Create(ctx, req.Name, req.AgentID, leadIDs)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownLead) {
			return transport.CampaignResponse{}, apperr.Validation("lead_ids contains an unknown lead")
		}
		return transport.CampaignResponse{}, err
	}
	return transport.ToCampaignResponse(campaign), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.CampaignResponse, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.CampaignResponse{}, apperr.NotFound("campaign not found")
		}
		return transport.CampaignResponse{}, err
	}
	return transport.ToCampaignResponse(campaign), nil
}

func (s *Service) List(ctx context.Context) ([]transport.CampaignResponse, error) {
	campaigns, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return transport.ToCampaignResponses(campaigns), nil
}

// Start moves a created or paused campaign to running.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (transport.CampaignResponse, error) {
	return s.transition(ctx, id, repository.StatusRunning,
		repository.StatusCreated, repository.StatusPaused)
}

// Pause suspends a running campaign. Calls already in flight finish normally.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) (transport.CampaignResponse, error) {
	return s.transition(ctx, id, repository.StatusPaused, repository.StatusRunning)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to repository.CampaignStatus, from ...repository.CampaignStatus) (transport.CampaignResponse, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.CampaignResponse{}, apperr.NotFound("campaign not found")
		}
		return transport.CampaignResponse{}, err
	}

	allowed := false
	for _, status := range from {
		if campaign.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return transport.CampaignResponse{}, apperr.Conflict("campaign cannot move to " + string(to) + " from " + string(campaign.Status))
	}

	campaign, err = s.repo.SetStatus(ctx, id, to)
	if err != nil {
		return transport.CampaignResponse{}, err
	}
	return transport.ToCampaignResponse(campaign), nil
}

// DialNext advances one running campaign by a single call. Members that are
// no longer dialable (booked, failed, mid-call) are skipped; a dispatch
// Conflict means someone else is already calling the lead and also skips.
// When the member list is exhausted the campaign completes.
func (s *Service) DialNext(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := s.repo.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("campaign not found")
		}
		return err
	}
	if campaign.Status != repository.StatusRunning {
		return nil
	}

	for {
		leadID, err := s.repo.NextUndialed(ctx, campaignID)
		if errors.Is(err, repository.ErrNoLeadsRemaining) {
			if _, err := s.repo.SetStatus(ctx, campaignID, repository.StatusCompleted); err != nil {
				return err
			}
			s.log.Info("campaign completed", "campaign_id", campaignID.String())
			return nil
		}
		if err != nil {
			return err
		}

		lead, err := s.leads.GetByID(ctx, leadID)
		if err != nil {
			if errors.Is(err, leadsrepo.ErrNotFound) {
				continue // member deleted since enrollment
			}
			return err
		}
		if !domain.Dialable(lead.Status) {
			continue
		}

		_, err = s.dialer.Dispatch(ctx, leadID)
		switch {
		case err == nil:
			return nil
		case apperr.Is(err, apperr.KindConflict):
			continue
		case apperr.Is(err, apperr.KindUpstream):
			// Provider trouble affects every member; stop this tick and let
			// the next one retry.
			return err
		default:
			return err
		}
	}
}

// TickRunning advances every running campaign by one call. Errors on one
// campaign do not block the others.
func (s *Service) TickRunning(ctx context.Context) error {
	ids, err := s.repo.ListRunning(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, id := range ids {
		if err := s.DialNext(ctx, id); err != nil {
			s.log.Error("campaign dial tick failed", "campaign_id", id.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
