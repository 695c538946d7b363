package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("campaign not found")

	// ErrNoLeadsRemaining is returned by NextUndialed when every member of
	// the campaign has been handed to the dialer.
	ErrNoLeadsRemaining = errors.New("no undialed leads remaining")

	ErrUnknownLead = errors.New("campaign references unknown lead")
)

type CampaignStatus string

const (
	StatusCreated   CampaignStatus = "created"
	StatusRunning   CampaignStatus = "running"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
)

func ValidStatus(s CampaignStatus) bool {
	switch s {
	case StatusCreated, StatusRunning, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

type Campaign struct {
	ID        uuid.UUID
	Name      string
	Status    CampaignStatus
	AgentID   string
	Total     int
	Dialed    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `c.id, c.name, c.status, c.agent_id,
	(SELECT COUNT(*) FROM campaign_leads cl WHERE cl.campaign_id = c.id),
	(SELECT COUNT(*) FROM campaign_leads cl WHERE cl.campaign_id = c.id AND cl.dialed_at IS NOT NULL),
	c.created_at, c.updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var campaign Campaign
	err := row.Scan(
		&campaign.ID, &campaign.Name, &campaign.Status, &campaign.AgentID,
		&campaign.Total, &campaign.Dialed, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	return campaign, nil
}

// Create inserts the campaign and its member list in one transaction. Member
// positions follow the order of leadIDs.
func (r *Repository) Create(ctx context.Context, name, agentID string, leadIDs []uuid.UUID) (Campaign, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Campaign{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO campaigns (name, agent_id) VALUES ($1, $2)
		RETURNING id, name, status, agent_id, 0, 0, created_at, updated_at
	`, name, agentID)
	campaign, err := scanCampaign(row)
	if err != nil {
		return Campaign{}, err
	}

	for position, leadID := range leadIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_leads (campaign_id, lead_id, position)
			VALUES ($1, $2, $3)
		`, campaign.ID, leadID, position); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return Campaign{}, ErrUnknownLead
			}
			return Campaign{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Campaign{}, err
	}
	campaign.Total = len(leadIDs)
	return campaign, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+` FROM campaigns c WHERE c.id = $1
	`, id)
	return scanCampaign(row)
}

func (r *Repository) List(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns c ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		var campaign Campaign
		if err := rows.Scan(
			&campaign.ID, &campaign.Name, &campaign.Status, &campaign.AgentID,
			&campaign.Total, &campaign.Dialed, &campaign.CreatedAt, &campaign.UpdatedAt,
		); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// SetStatus moves a campaign between lifecycle states.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status CampaignStatus) (Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE campaigns c SET status = $2, updated_at = now()
		WHERE c.id = $1
		RETURNING `+campaignColumns,
		id, status,
	)
	return scanCampaign(row)
}

// ListRunning returns the ids of campaigns the dial tick should advance.
func (r *Repository) ListRunning(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM campaigns WHERE status = 'running' ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NextUndialed claims the lowest-position member not yet handed to the
// dialer. FOR UPDATE SKIP LOCKED keeps concurrent ticks off the same row.
func (r *Repository) NextUndialed(ctx context.Context, campaignID uuid.UUID) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	var leadID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT lead_id FROM campaign_leads
		WHERE campaign_id = $1 AND dialed_at IS NULL
		ORDER BY position
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, campaignID).Scan(&leadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNoLeadsRemaining
	}
	if err != nil {
		return uuid.Nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE campaign_leads SET dialed_at = now()
		WHERE campaign_id = $1 AND lead_id = $2
	`, campaignID, leadID); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return leadID, nil
}
