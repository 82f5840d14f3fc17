package episodic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveTemporal(t *testing.T) {
	t.Parallel()

	// A fixed evening reference instant; every day-granularity resolution
	// must land at noon UTC of the named day.
	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	day := func(year int, month time.Month, d int) time.Time {
		return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"today", "I signed the lease today", day(2026, time.March, 15)},
		{"oggi", "Mi chiamo Marco e sono di Milano, oggi", day(2026, time.March, 15)},
		{"yesterday", "Yesterday we moved offices", day(2026, time.March, 14)},
		{"ieri", "ieri ho perso il treno", day(2026, time.March, 14)},
		{"tomorrow", "the inspection is tomorrow", day(2026, time.March, 16)},
		{"domani", "Domani parto per Roma", day(2026, time.March, 16)},
		{"n days ago", "it broke 3 days ago", day(2026, time.March, 12)},
		{"one day ago", "we met 1 day ago", day(2026, time.March, 14)},
		{"giorni fa", "è successo 10 giorni fa", day(2026, time.March, 5)},
		{"last week", "we launched last week", day(2026, time.March, 8)},
		{"settimana scorsa", "la settimana scorsa ero in ferie", day(2026, time.March, 8)},
		{"last month", "the audit was last month", day(2026, time.February, 15)},
		{"mese scorso", "il mese scorso ho cambiato casa", day(2026, time.February, 15)},
		{"explicit date", "the deadline is 20/06", day(2026, time.June, 20)},
		{"explicit date with year", "we signed on 02/01/2025", day(2025, time.January, 2)},
		{"explicit date two digit year", "delivered on 5/11/24", day(2024, time.November, 5)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			match := resolveTemporal(tt.text, now)
			require.NotNil(t, match)
			require.Equal(t, tt.want, match.occurredAt)
		})
	}
}

func TestResolveTemporalNoMatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	for _, text := range []string{
		"I like the new apartment",
		"Mi chiamo Marco e sono di Milano",
		"call me at 15:30", // clock time, not a date
		"the event was on 31/02",
		"meet me in 0 days ago", // nonsense count
		"",
	} {
		require.Nil(t, resolveTemporal(text, now), "text %q", text)
	}
}

func TestResolveTemporalPatternPriority(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)

	// Patterns are evaluated in order; "today" outranks "yesterday".
	match := resolveTemporal("yesterday I thought about it, today I decided", now)
	require.NotNil(t, match)
	require.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), match.occurredAt)
}

func TestResolveTemporalPhrase(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	match := resolveTemporal("it broke 3 days ago in the morning", now)
	require.NotNil(t, match)
	require.Equal(t, "3 days ago", match.phrase)
}
