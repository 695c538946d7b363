package transport

import (
	"encoding/json"
	"time"

	"aileadgen_backend/internal/calls/repository"
)

type InitiateCallRequest struct {
	LeadID string `json:"lead_id" validate:"required,uuid4"`
}

// TranscriptTurn is one utterance in a call transcript, stored as-is in the
// call log's JSONB column.
type TranscriptTurn struct {
	Speaker string `json:"speaker" validate:"required,oneof=agent lead"`
	Text    string `json:"text" validate:"required"`
}

// CallStatusWebhook is the payload the calling provider posts when a call
// reaches a terminal state.
type CallStatusWebhook struct {
	ProviderCallID string           `json:"call_id" validate:"required"`
	Outcome        string           `json:"outcome" validate:"required"`
	Transcript     []TranscriptTurn `json:"transcript" validate:"omitempty,dive"`
	RecordingURL   *string          `json:"recording_url" validate:"omitempty,url"`
	DurationSec    *int             `json:"duration_sec" validate:"omitempty,min=0"`
}

type CallLogResponse struct {
	ID               string           `json:"id"`
	LeadID           string           `json:"lead_id"`
	AttemptedAt      time.Time        `json:"attempted_at"`
	Outcome          *string          `json:"outcome"`
	Transcript       []TranscriptTurn `json:"transcript"`
	RecordingURL     *string          `json:"recording_url"`
	DurationSec      *int             `json:"duration_sec"`
	AgentVersion     string           `json:"agent_version"`
	ProcessingStatus string           `json:"processing_status"`
	ProviderCallID   *string          `json:"provider_call_id"`
	CreatedAt        time.Time        `json:"created_at"`
}

func ToCallLogResponse(entry repository.CallLog) CallLogResponse {
	resp := CallLogResponse{
		ID:               entry.ID.String(),
		LeadID:           entry.LeadID.String(),
		AttemptedAt:      entry.AttemptedAt,
		Transcript:       make([]TranscriptTurn, 0),
		RecordingURL:     entry.RecordingURL,
		DurationSec:      entry.DurationSec,
		AgentVersion:     entry.AgentVersion,
		ProcessingStatus: string(entry.ProcessingStatus),
		ProviderCallID:   entry.ProviderCallID,
		CreatedAt:        entry.CreatedAt,
	}
	if entry.Outcome != nil {
		outcome := string(*entry.Outcome)
		resp.Outcome = &outcome
	}
	if len(entry.Transcript) > 0 {
		// Ignore decode errors: the column is written from validated turns,
		// and a bad row should not fail the whole listing.
		_ = json.Unmarshal(entry.Transcript, &resp.Transcript)
	}
	return resp
}

func ToCallLogResponses(entries []repository.CallLog) []CallLogResponse {
	out := make([]CallLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToCallLogResponse(entry))
	}
	return out
}
