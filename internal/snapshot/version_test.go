package snapshot

import "testing"

func TestCanApply(t *testing.T) {
	v := func(n int64) *int64 { return &n }

	cases := []struct {
		name     string
		current  *int64
		incoming int64
		want     Decision
	}{
		{
			name:     "first_event_for_unknown_aggregate",
			current:  nil,
			incoming: 0,
			want:     Apply,
		},
		{
			name:     "later_event_for_unknown_aggregate",
			current:  nil,
			incoming: 7,
			want:     Apply,
		},
		{
			name:     "exact_successor",
			current:  v(3),
			incoming: 4,
			want:     Apply,
		},
		{
			name:     "replayed_same_version",
			current:  v(3),
			incoming: 3,
			want:     Duplicate,
		},
		{
			name:     "older_version",
			current:  v(3),
			incoming: 1,
			want:     Duplicate,
		},
		{
			name:     "version_gap",
			current:  v(3),
			incoming: 5,
			want:     Gap,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanApply(tc.current, tc.incoming)
			if got != tc.want {
				t.Fatalf("CanApply(%v, %d) = %v, want %v", tc.current, tc.incoming, got, tc.want)
			}
		})
	}
}
