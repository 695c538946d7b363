package transport

import (
	"time"

	"aileadgen_backend/internal/campaigns/repository"
)

type CreateCampaignRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=200"`
	AgentID string   `json:"agent_id" validate:"omitempty,max=200"`
	LeadIDs []string `json:"lead_ids" validate:"required,min=1,dive,uuid4"`
}

type CampaignResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	AgentID   string    `json:"agent_id,omitempty"`
	Total     int       `json:"total"`
	Dialed    int       `json:"dialed"`
	Remaining int       `json:"remaining"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToCampaignResponse(campaign repository.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:        campaign.ID.String(),
		Name:      campaign.Name,
		Status:    string(campaign.Status),
		AgentID:   campaign.AgentID,
		Total:     campaign.Total,
		Dialed:    campaign.Dialed,
		Remaining: campaign.Total - campaign.Dialed,
		CreatedAt: campaign.CreatedAt,
		UpdatedAt: campaign.UpdatedAt,
	}
}

func ToCampaignResponses(campaigns []repository.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		out = append(out, ToCampaignResponse(campaign))
	}
	return out
}
