package server

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	now := time.Now()
	past := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	cases := []struct {
		name string
		cron string
		last *time.Time
		want bool
	}{
		{"daily never swept", "@daily", nil, true},
		{"daily swept recently", "@daily", past(23 * time.Hour), false},
		{"daily overdue", "@daily", past(25 * time.Hour), true},
		{"hourly never swept", "@hourly", nil, true},
		{"hourly swept recently", "@hourly", past(30 * time.Minute), false},
		{"hourly overdue", "@hourly", past(2 * time.Hour), true},
		{"cron never swept", "0 0 * * *", nil, true},
		{"cron occurrence elapsed", "* * * * *", past(2 * time.Minute), true},
		{"cron swept just now", "0 0 * * *", past(0), false},
		{"invalid falls back to daily", "every day", past(23 * time.Hour), false},
		{"invalid overdue", "every day", past(25 * time.Hour), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDue(tc.cron, tc.last); got != tc.want {
				t.Fatalf("isDue(%q) = %v, want %v", tc.cron, got, tc.want)
			}
		})
	}
}
