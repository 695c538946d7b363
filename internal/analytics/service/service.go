// Package service computes read-only pipeline analytics. Nothing here is
// cached or materialized: every request recomputes from the stores.
package service

import (
	"context"
	"time"

	"aileadgen_backend/internal/analytics/repository"
	"aileadgen_backend/internal/analytics/transport"
	"aileadgen_backend/internal/leads/domain"

	"golang.org/x/sync/errgroup"
)

// CallStatsReader is the call-side aggregate reader.
type CallStatsReader interface {
	CallStatsSince(ctx context.Context, since time.Time) ([]repository.DayCallStats, error)
	CountCallsSince(ctx context.Context, since time.Time) (int, error)
	CountBookedSince(ctx context.Context, since time.Time) (int, error)
}

// LeadCounter is the lead-side aggregate reader.
type LeadCounter interface {
	CountByStatus(ctx context.Context) (map[domain.LeadStatus]int, error)
}

type Service struct {
	calls CallStatsReader
	leads LeadCounter
	now   func() time.Time
}

func New(calls CallStatsReader, leads LeadCounter) *Service {
	return &Service{calls: calls, leads: leads, now: func() time.Time { return time.Now().UTC() }}
}

// StatusCounts returns the lead funnel, all statuses present.
func (s *Service) StatusCounts(ctx context.Context) (transport.StatusCountsResponse, error) {
	counts, err := s.leads.CountByStatus(ctx)
	if err != nil {
		return transport.StatusCountsResponse{}, err
	}
	return toStatusCounts(counts), nil
}

// CallStats returns per-day call aggregates for the trailing window.
func (s *Service) CallStats(ctx context.Context, days int) ([]transport.DayCallStatsResponse, error) {
	if days < 1 {
		days = 30
	}
	since := s.now().AddDate(0, 0, -days)

	stats, err := s.calls.CallStatsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	out := make([]transport.DayCallStatsResponse, 0, len(stats))
	for _, day := range stats {
		byOutcome := make(map[string]int, len(day.ByOutcome))
		for outcome, count := range day.ByOutcome {
			byOutcome[string(outcome)] = count
		}
		out = append(out, transport.DayCallStatsResponse{
			Day:            day.Day.Format("2006-01-02"),
			TotalCalls:     day.Total,
			ByOutcome:      byOutcome,
			AvgDurationSec: day.AvgDurationSec,
		})
	}
	return out, nil
}

// Dashboard assembles the operator summary. The lead and call reads are
// independent, so they run concurrently.
func (s *Service) Dashboard(ctx context.Context) (transport.DashboardStatsResponse, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -6)

	var (
		leadCounts  map[domain.LeadStatus]int
		callsToday  int
		callsWeek   int
		bookedToday int
		bookedWeek  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leadCounts, err = s.leads.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		callsToday, err = s.calls.CountCallsSince(gctx, dayStart)
		return err
	})
	g.Go(func() error {
		var err error
		callsWeek, err = s.calls.CountCallsSince(gctx, weekStart)
		return err
	})
	g.Go(func() error {
		var err error
		bookedToday, err = s.calls.CountBookedSince(gctx, dayStart)
		return err
	})
	g.Go(func() error {
		var err error
		bookedWeek, err = s.calls.CountBookedSince(gctx, weekStart)
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.DashboardStatsResponse{}, err
	}

	return transport.DashboardStatsResponse{
		Leads:       toStatusCounts(leadCounts),
		CallsToday:  callsToday,
		CallsWeek:   callsWeek,
		BookedToday: bookedToday,
		BookedWeek:  bookedWeek,
		GeneratedAt: now,
	}, nil
}

func toStatusCounts(counts map[domain.LeadStatus]int) transport.StatusCountsResponse {
	resp := transport.StatusCountsResponse{
		New:         counts[domain.LeadStatusNew],
		Called:      counts[domain.LeadStatusCalled],
		Booked:      counts[domain.LeadStatusBooked],
		Callback:    counts[domain.LeadStatusCallback],
		NotAnswered: counts[domain.LeadStatusNotAnswered],
		Failed:      counts[domain.LeadStatusFailed],
	}
	resp.Total = resp.New + resp.Called + resp.Booked + resp.Callback + resp.NotAnswered + resp.Failed
	return resp
}
