package transport

import (
	"time"

	"aileadgen_backend/internal/leads/domain"
	"aileadgen_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Request DTOs

type CreateLeadRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	PhoneNumber string `json:"phoneNumber" validate:"required,min=5,max=20"`
	Timezone    string `json:"timezone,omitempty" validate:"omitempty,max=64"`
	Notes       string `json:"notes,omitempty" validate:"omitempty,max=10000"`
}

type UpdateLeadRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,min=5,max=20"`
	Timezone    *string `json:"timezone,omitempty" validate:"omitempty,max=64"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=new called booked callback not_answered failed"`
}

// Response DTOs

type LeadResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	PhoneNumber  string     `json:"phoneNumber"`
	Timezone     string     `json:"timezone"`
	Notes        string     `json:"notes"`
	Status       string     `json:"status"`
	LastCallTime *time.Time `json:"lastCallTime,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:           lead.ID,
		Name:         lead.Name,
		PhoneNumber:  lead.PhoneNumber,
		Timezone:     lead.Timezone,
		Notes:        lead.Notes,
		Status:       string(lead.Status),
		LastCallTime: lead.LastCallTime,
		CreatedAt:    lead.CreatedAt,
		UpdatedAt:    lead.UpdatedAt,
	}
}

func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}

// ParseStatus converts a raw status string, reporting validity.
func ParseStatus(raw string) (domain.LeadStatus, bool) {
	status := domain.LeadStatus(raw)
	return status, domain.ValidLeadStatus(status)
}
