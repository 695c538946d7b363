package transport

import "time"

// StatusCountsResponse reports how many leads sit in each pipeline status.
// Every status is present, zero or not, and Total is their sum.
type StatusCountsResponse struct {
	Total       int `json:"total"`
	New         int `json:"new"`
	Called      int `json:"called"`
	Booked      int `json:"booked"`
	Callback    int `json:"callback"`
	NotAnswered int `json:"not_answered"`
	Failed      int `json:"failed"`
}

// DayCallStatsResponse is one day's call activity.
type DayCallStatsResponse struct {
	Day            string         `json:"day"`
	TotalCalls     int            `json:"total_calls"`
	ByOutcome      map[string]int `json:"by_outcome"`
	AvgDurationSec float64        `json:"avg_duration_sec"`
}

// DashboardStatsResponse is the operator dashboard summary: the lead funnel
// plus call volume for today and the trailing week.
type DashboardStatsResponse struct {
	Leads       StatusCountsResponse `json:"leads"`
	CallsToday  int                  `json:"calls_today"`
	CallsWeek   int                  `json:"calls_week"`
	BookedToday int                  `json:"booked_today"`
	BookedWeek  int                  `json:"booked_week"`
	GeneratedAt time.Time            `json:"generated_at"`
}
