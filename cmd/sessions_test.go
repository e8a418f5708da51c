package cmd

import (
	"testing"
	"time"
)

func TestFormatTime(t *testing.T) {
	t.Parallel()

	now := time.Now()
	old := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "seconds ago", t: now.Add(-30 * time.Second), want: "just now"},
		{name: "minutes ago", t: now.Add(-5 * time.Minute), want: "5 minutes ago"},
		{name: "hours ago", t: now.Add(-3 * time.Hour), want: "3 hours ago"},
		{name: "days ago", t: now.Add(-2 * 24 * time.Hour), want: "2 days ago"},
		{name: "older than a week is absolute", t: old, want: old.Format("2006-01-02 15:04")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatTime(tt.t); got != tt.want {
				t.Errorf("formatTime(%v) = %q, want %q", tt.t, got, tt.want)
			}
		})
	}
}
