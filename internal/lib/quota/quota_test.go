package quota

import (
	"testing"
	"time"

	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

func TestCanMakeRequest_TableTests(t *testing.T) {
	tests := []struct {
		name string
		sub  models.Subscription
		want bool
	}{
		{
			name: "free under limit",
			sub: models.Subscription{
				Plan:   models.PlanFree,
				Status: models.StatusInactive,
				Usage:  models.Usage{RequestsThisMonth: 9, RequestsLimit: 10},
			},
			want: true,
		},
		{
			name: "free at limit",
			sub: models.Subscription{
				Plan:   models.PlanFree,
				Status: models.StatusInactive,
				Usage:  models.Usage{RequestsThisMonth: 10, RequestsLimit: 10},
			},
			want: false,
		},
		{
			name: "free over limit after downgrade",
			sub: models.Subscription{
				Plan:   models.PlanFree,
				Status: models.StatusCancelled,
				Usage:  models.Usage{RequestsThisMonth: 37, RequestsLimit: 10},
			},
			want: false,
		},
		{
			name: "pro active",
			sub: models.Subscription{
				Plan:   models.PlanPro,
				Status: models.StatusActive,
				Usage:  models.Usage{RequestsThisMonth: 999, RequestsLimit: 1000},
			},
			want: true,
		},
		{
			name: "pro past_due is denied despite plan",
			sub: models.Subscription{
				Plan:   models.PlanPro,
				Status: models.StatusPastDue,
				Usage:  models.Usage{RequestsThisMonth: 1, RequestsLimit: 1000},
			},
			want: false,
		},
		{
			name: "pro cancelled",
			sub: models.Subscription{
				Plan:   models.PlanPro,
				Status: models.StatusCancelled,
				Usage:  models.Usage{RequestsThisMonth: 0, RequestsLimit: 1000},
			},
			want: false,
		},
		{
			name: "pro active ignores counter",
			sub: models.Subscription{
				Plan:   models.PlanPro,
				Status: models.StatusActive,
				Usage:  models.Usage{RequestsThisMonth: 5000, RequestsLimit: 1000},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanMakeRequest(tt.sub); got != tt.want {
				t.Errorf("CanMakeRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasActiveSubscription(t *testing.T) {
	tests := []struct {
		name string
		sub  models.Subscription
		want bool
	}{
		{name: "pro active", sub: models.Subscription{Plan: models.PlanPro, Status: models.StatusActive}, want: true},
		{name: "pro past_due", sub: models.Subscription{Plan: models.PlanPro, Status: models.StatusPastDue}, want: false},
		{name: "free inactive", sub: models.Subscription{Plan: models.PlanFree, Status: models.StatusInactive}, want: false},
		{name: "free active", sub: models.Subscription{Plan: models.PlanFree, Status: models.StatusActive}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasActiveSubscription(tt.sub); got != tt.want {
				t.Errorf("HasActiveSubscription() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNext_SameMonth(t *testing.T) {
	reset := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	u := models.Usage{RequestsThisMonth: 4, RequestsLimit: 10, LastResetDate: reset}

	u = Next(u, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	u = Next(u, time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC))

	if u.RequestsThisMonth != 6 {
		t.Errorf("RequestsThisMonth = %d, want 6", u.RequestsThisMonth)
	}
	if !u.LastResetDate.Equal(reset) {
		t.Errorf("LastResetDate changed within month: %v", u.LastResetDate)
	}
}

func TestNext_MonthRollover(t *testing.T) {
	tests := []struct {
		name  string
		reset time.Time
		now   time.Time
	}{
		{
			name:  "next month",
			reset: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "year transition",
			reset: time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			now:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "same month number different year",
			reset: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := models.Usage{RequestsThisMonth: 9, RequestsLimit: 10, LastResetDate: tt.reset}
			got := Next(u, tt.now)
			if got.RequestsThisMonth != 1 {
				t.Errorf("RequestsThisMonth = %d, want 1", got.RequestsThisMonth)
			}
			if !SameMonth(got.LastResetDate, tt.now) {
				t.Errorf("LastResetDate = %v, want within month of %v", got.LastResetDate, tt.now)
			}
		})
	}
}

func TestSameMonth_Timezones(t *testing.T) {
	// 2025-03-31 23:00 в UTC-5 это уже 2025-04-01 04:00 UTC
	loc := time.FixedZone("UTC-5", -5*3600)
	a := time.Date(2025, 3, 31, 23, 0, 0, 0, loc)
	b := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	if SameMonth(a, b) {
		t.Error("expected different months after UTC normalization")
	}
}

func TestRemaining_NeverNegative(t *testing.T) {
	u := models.Usage{RequestsThisMonth: 25, RequestsLimit: 10}
	if got := Remaining(u); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestStats_Snapshot(t *testing.T) {
	sub := models.Subscription{
		Plan:   models.PlanFree,
		Status: models.StatusInactive,
		Usage:  models.Usage{RequestsThisMonth: 10, RequestsLimit: 10},
	}
	got := Stats(sub)
	if got.Remaining != 0 || !got.HasReachedLimit || got.CanMakeRequest {
		t.Errorf("Stats() = %+v, want exhausted snapshot", got)
	}
	if got.Plan != models.PlanFree || got.Status != models.StatusInactive {
		t.Errorf("Stats() plan/status = %s/%s", got.Plan, got.Status)
	}
}
