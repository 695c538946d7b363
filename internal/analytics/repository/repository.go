package repository

import (
	"context"
	"time"

	"aileadgen_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DayCallStats aggregates one day's reconciled calls. Calls without an
// outcome count toward Total but not toward any outcome bucket, and their
// missing durations are excluded from the average.
type DayCallStats struct {
	Day            time.Time
	Total          int
	ByOutcome      map[domain.CallOutcome]int
	AvgDurationSec float64
}

// CallStatsSince returns per-day call aggregates for attempts on or after
// the cutoff, oldest day first.
func (r *Repository) CallStatsSince(ctx context.Context, since time.Time) ([]DayCallStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', attempted_at) AS day,
			COUNT(*),
			outcome,
			AVG(duration_sec),
			COUNT(duration_sec)
		FROM call_logs
		WHERE attempted_at >= $1
		GROUP BY day, outcome
		ORDER BY day
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[time.Time]*DayCallStats)
	order := make([]time.Time, 0)
	type weighted struct {
		sum   float64
		count int
	}
	durations := make(map[time.Time]*weighted)

	for rows.Next() {
		var (
			day      time.Time
			count    int
			outcome  *domain.CallOutcome
			avg      *float64
			durCount int
		)
		if err := rows.Scan(&day, &count, &outcome, &avg, &durCount); err != nil {
			return nil, err
		}

		stats, ok := byDay[day]
		if !ok {
			stats = &DayCallStats{Day: day, ByOutcome: make(map[domain.CallOutcome]int)}
			byDay[day] = stats
			durations[day] = &weighted{}
			order = append(order, day)
		}
		stats.Total += count
		if outcome != nil {
			stats.ByOutcome[*outcome] += count
		}
		// AVG skips NULL durations, so weight by the non-NULL count.
		if avg != nil && durCount > 0 {
			durations[day].sum += *avg * float64(durCount)
			durations[day].count += durCount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DayCallStats, 0, len(order))
	for _, day := range order {
		stats := byDay[day]
		if w := durations[day]; w.count > 0 {
			stats.AvgDurationSec = w.sum / float64(w.count)
		}
		out = append(out, *stats)
	}
	return out, nil
}

// CountCallsSince returns the number of call attempts on or after the cutoff.
func (r *Repository) CountCallsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM call_logs WHERE attempted_at >= $1
	`, since).Scan(&count)
	return count, err
}

// CountBookedSince returns the reconciled bookings on or after the cutoff.
func (r *Repository) CountBookedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM call_logs
		WHERE attempted_at >= $1 AND outcome = 'booked'
	`, since).Scan(&count)
	return count, err
}
