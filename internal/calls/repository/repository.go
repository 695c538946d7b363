package repository

import (
	"context"
	"errors"
	"time"

	"aileadgen_backend/internal/leads/domain"
	leadsrepo "aileadgen_backend/internal/leads/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("call log not found")

	// ErrPendingExists is returned when a lead already has a call log in
	// processing_status 'pending'. The partial unique index on call_logs
	// enforces this under concurrency.
	ErrPendingExists = errors.New("pending call exists for lead")

	// ErrAlreadyFinalized is returned by Finalize when the call log for the
	// provider call id exists but is no longer pending.
	ErrAlreadyFinalized = errors.New("call log already finalized")

	ErrLeadNotFound = errors.New("lead not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CallLog struct {
	ID               uuid.UUID
	LeadID           uuid.UUID
	AttemptedAt      time.Time
	Outcome          *domain.CallOutcome
	Transcript       []byte
	RecordingURL     *string
	DurationSec      *int
	AgentVersion     string
	ProcessingStatus domain.ProcessingStatus
	ProviderCallID   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const callLogColumns = `id, lead_id, attempted_at, outcome, transcript, recording_url,
	duration_sec, agent_version, processing_status, provider_call_id, created_at, updated_at`

func scanCallLog(row pgx.Row) (CallLog, error) {
	var entry CallLog
	err := row.Scan(
		&entry.ID, &entry.LeadID, &entry.AttemptedAt, &entry.Outcome, &entry.Transcript,
		&entry.RecordingURL, &entry.DurationSec, &entry.AgentVersion,
		&entry.ProcessingStatus, &entry.ProviderCallID, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CallLog{}, ErrNotFound
	}
	if err != nil {
		return CallLog{}, err
	}
	return entry, nil
}

// CreatePending inserts the pending call log that reserves the lead for a
// single in-flight call. A concurrent attempt for the same lead trips the
// uq_call_logs_pending_per_lead index and surfaces as ErrPendingExists.
func (r *Repository) CreatePending(ctx context.Context, leadID uuid.UUID, agentVersion string) (CallLog, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO call_logs (lead_id, agent_version)
		VALUES ($1, $2)
		RETURNING `+callLogColumns,
		leadID, agentVersion,
	)
	entry, err := scanCallLog(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return CallLog{}, ErrPendingExists
			case "23503":
				return CallLog{}, ErrLeadNotFound
			}
		}
		return CallLog{}, err
	}
	return entry, nil
}

// MarkDispatched records the provider call id on the pending entry and moves
// the lead to 'called' in the same transaction, so a crash between the two
// writes cannot leave them disagreeing.
func (r *Repository) MarkDispatched(ctx context.Context, id uuid.UUID, providerCallID string) (CallLog, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return CallLog{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE call_logs
		SET provider_call_id = $2, updated_at = now()
		WHERE id = $1 AND processing_status = 'pending'
		RETURNING `+callLogColumns,
		id, providerCallID,
	)
	entry, err := scanCallLog(row)
	if err != nil {
		return CallLog{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE leads
		SET status = 'called', last_call_time = $2, updated_at = now()
		WHERE id = $1
	`, entry.LeadID, entry.AttemptedAt); err != nil {
		return CallLog{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CallLog{}, err
	}
	return entry, nil
}

// MarkDispatchFailed closes a pending entry whose provider call never went
// out. The lead is left untouched so it stays eligible for a later attempt.
func (r *Repository) MarkDispatchFailed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_logs
		SET outcome = 'failed', processing_status = 'completed', updated_at = now()
		WHERE id = $1 AND processing_status = 'pending'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type FinalizeParams struct {
	ProviderCallID string
	Outcome        domain.CallOutcome
	Transcript     []byte
	RecordingURL   *string
	DurationSec    *int
	LeadStatus     domain.LeadStatus
}

// Finalize completes the pending call log matched by provider call id and
// applies the mapped status to its lead in one transaction. The conditional
// UPDATE on processing_status makes repeated deliveries of the same provider
// event no-ops: the second one matches no rows and, because the entry exists
// in 'completed', reports ErrAlreadyFinalized.
func (r *Repository) Finalize(ctx context.Context, params FinalizeParams) (CallLog, leadsrepo.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return CallLog{}, leadsrepo.Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE call_logs
		SET outcome = $2, transcript = $3, recording_url = $4, duration_sec = $5,
			processing_status = 'completed', updated_at = now()
		WHERE provider_call_id = $1 AND processing_status = 'pending'
		RETURNING `+callLogColumns,
		params.ProviderCallID, params.Outcome, params.Transcript,
		params.RecordingURL, params.DurationSec,
	)
	entry, err := scanCallLog(row)
	if errors.Is(err, ErrNotFound) {
		existing, getErr := r.GetByProviderCallID(ctx, params.ProviderCallID)
		if getErr != nil {
			return CallLog{}, leadsrepo.Lead{}, ErrNotFound
		}
		return existing, leadsrepo.Lead{}, ErrAlreadyFinalized
	}
	if err != nil {
		return CallLog{}, leadsrepo.Lead{}, err
	}

	leadRow := tx.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, last_call_time = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, name, phone_number, timezone, notes, status, last_call_time, created_at, updated_at
	`, entry.LeadID, params.LeadStatus, entry.AttemptedAt)

	var lead leadsrepo.Lead
	if err := leadRow.Scan(
		&lead.ID, &lead.Name, &lead.PhoneNumber, &lead.Timezone, &lead.Notes,
		&lead.Status, &lead.LastCallTime, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return CallLog{}, leadsrepo.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CallLog{}, leadsrepo.Lead{}, err
	}
	return entry, lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (CallLog, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+callLogColumns+` FROM call_logs WHERE id = $1
	`, id)
	return scanCallLog(row)
}

func (r *Repository) GetByProviderCallID(ctx context.Context, providerCallID string) (CallLog, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+callLogColumns+` FROM call_logs WHERE provider_call_id = $1
	`, providerCallID)
	return scanCallLog(row)
}

// ListByLead returns the lead's call history, most recent attempt first.
func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]CallLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callLogColumns+` FROM call_logs
		WHERE lead_id = $1
		ORDER BY attempted_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCallLogs(rows)
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]CallLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+callLogColumns+` FROM call_logs
		ORDER BY attempted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCallLogs(rows)
}

// ListStuckPending returns pending entries older than the cutoff, for the
// sweep that reconciles calls whose provider events never arrived.
func (r *Repository) ListStuckPending(ctx context.Context, cutoff time.Time) ([]CallLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callLogColumns+` FROM call_logs
		WHERE processing_status = 'pending' AND attempted_at < $1
		ORDER BY attempted_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCallLogs(rows)
}

func collectCallLogs(rows pgx.Rows) ([]CallLog, error) {
	entries := make([]CallLog, 0)
	for rows.Next() {
		var entry CallLog
		if err := rows.Scan(
			&entry.ID, &entry.LeadID, &entry.AttemptedAt, &entry.Outcome, &entry.Transcript,
			&entry.RecordingURL, &entry.DurationSec, &entry.AgentVersion,
			&entry.ProcessingStatus, &entry.ProviderCallID, &entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
