package projection

import (
	"testing"
	"time"
)

func TestShouldApply(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		watermark *time.Time
		eventAt   time.Time
		want      bool
	}{
		{"no_watermark_yet", nil, base, true},
		{"strictly_newer", &base, base.Add(time.Second), true},
		{"same_instant", &base, base, false},
		{"older_fact", &base, base.Add(-time.Hour), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldApply(tc.watermark, tc.eventAt); got != tc.want {
				t.Fatalf("ShouldApply = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"Ada", "", "Ada"},
		{"", "Lovelace", "Lovelace"},
		{"", "", ""},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.first, tc.last); got != tc.want {
			t.Fatalf("DisplayName(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
	}
}
