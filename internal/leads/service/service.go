// Package service handles lead intake and management operations.
package service

import (
	"context"
	"errors"

	"aileadgen_backend/internal/events"
	"aileadgen_backend/internal/leads/domain"
	"aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/internal/leads/transport"
	"aileadgen_backend/platform/apperr"
	"aileadgen_backend/platform/phone"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the lead service.
type Repository interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service handles lead management operations (intake, CRUD).
type Service struct {
	repo Repository
	bus  events.Bus
}

// New creates a new lead service.
func New(repo Repository, bus events.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

// Create registers a new lead in status new. The phone number is normalized
// to E.164 and must be non-empty.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	req.PhoneNumber = phone.NormalizeE164(req.PhoneNumber)
	if req.PhoneNumber == "" {
		return transport.LeadResponse{}, apperr.Validation("phone number is required")
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Timezone:    req.Timezone,
		Notes:       req.Notes,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			Name:        lead.Name,
			PhoneNumber: lead.PhoneNumber,
		})
	}

	return transport.ToLeadResponse(lead), nil
}

// GetByID retrieves a lead by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// List returns leads ordered by creation time, optionally filtered by status.
func (s *Service) List(ctx context.Context, statusFilter string, limit, offset int) ([]transport.LeadResponse, error) {
	params := repository.ListLeadsParams{Limit: limit, Offset: offset}
	if statusFilter != "" {
		status, ok := transport.ParseStatus(statusFilter)
		if !ok {
			return nil, apperr.Validation("unknown lead status")
		}
		params.Status = &status
	}

	leads, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	return transport.ToLeadResponses(leads), nil
}

// Update applies an operator-driven partial update. This is the manual
// override path: it may move booked/failed leads, which machine transitions
// never do.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params := repository.UpdateLeadParams{
		Name:     req.Name,
		Timezone: req.Timezone,
		Notes:    req.Notes,
	}

	if req.PhoneNumber != nil {
		normalized := phone.NormalizeE164(*req.PhoneNumber)
		if normalized == "" {
			return transport.LeadResponse{}, apperr.Validation("phone number cannot be empty")
		}
		params.PhoneNumber = &normalized
	}
	if req.Status != nil {
		status := domain.LeadStatus(*req.Status)
		if !domain.ValidLeadStatus(status) {
			return transport.LeadResponse{}, apperr.Validation("unknown lead status")
		}
		params.Status = &status
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// Delete removes a lead and, via cascade, its call logs.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return nil
}
