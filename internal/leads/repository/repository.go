package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aileadgen_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID           uuid.UUID
	Name         string
	PhoneNumber  string
	Timezone     string
	Notes        string
	Status       domain.LeadStatus
	LastCallTime *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const leadColumns = `id, name, phone_number, timezone, notes, status, last_call_time, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.PhoneNumber, &lead.Timezone, &lead.Notes,
		&lead.Status, &lead.LastCallTime, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

type CreateLeadParams struct {
	Name        string
	PhoneNumber string
	Timezone    string
	Notes       string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (name, phone_number, timezone, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+leadColumns,
		params.Name, params.PhoneNumber, params.Timezone, params.Notes,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id)
	return scanLead(row)
}

type ListLeadsParams struct {
	Status *domain.LeadStatus
	Limit  int
	Offset int
}

func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]Lead, error) {
	if params.Limit < 1 {
		params.Limit = 100
	}

	var (
		conditions []string
		args       []any
	)
	if params.Status != nil {
		args = append(args, *params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, params.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, params.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(
			&lead.ID, &lead.Name, &lead.PhoneNumber, &lead.Timezone, &lead.Notes,
			&lead.Status, &lead.LastCallTime, &lead.CreatedAt, &lead.UpdatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}

type UpdateLeadParams struct {
	Name        *string
	PhoneNumber *string
	Timezone    *string
	Notes       *string
	Status      *domain.LeadStatus
}

// Update applies a partial operator update. Machine-driven status transitions
// go through the calls repository, not here.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.PhoneNumber != nil {
		appendSet("phone_number", *params.PhoneNumber)
	}
	if params.Timezone != nil {
		appendSet("timezone", *params.Timezone)
	}
	if params.Notes != nil {
		appendSet("notes", *params.Notes)
	}
	if params.Status != nil {
		appendSet("status", *params.Status)
	}

	query := fmt.Sprintf(
		"UPDATE leads SET %s WHERE id = $1 RETURNING %s",
		strings.Join(sets, ", "), leadColumns,
	)
	return scanLead(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a lead; call logs cascade at the database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of leads per status. Statuses with no
// leads are present with a zero count.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.LeadStatus]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM leads GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.LeadStatus]int{
		domain.LeadStatusNew:         0,
		domain.LeadStatusCalled:      0,
		domain.LeadStatusBooked:      0,
		domain.LeadStatusCallback:    0,
		domain.LeadStatusNotAnswered: 0,
		domain.LeadStatusFailed:      0,
	}
	for rows.Next() {
		var (
			status domain.LeadStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
