package episodic

import (
	"regexp"
	"strconv"
	"time"
)

// temporalKind tags the temporal reference variants the resolver recognizes.
type temporalKind int

const (
	kindToday temporalKind = iota
	kindYesterday
	kindTomorrow
	kindRelativeDays
	kindLastWeek
	kindLastMonth
	kindExplicitDate
)

// temporalPattern binds a phrase pattern to its resolver variant. Patterns
// are evaluated in order; the first match wins. English and Italian phrasing
// is recognized (the original deployment served Italian-speaking users).
type temporalPattern struct {
	re   *regexp.Regexp
	kind temporalKind
}

var temporalPatterns = []temporalPattern{
	{regexp.MustCompile(`(?i)\b(today|oggi)\b`), kindToday},
	{regexp.MustCompile(`(?i)\b(yesterday|ieri)\b`), kindYesterday},
	{regexp.MustCompile(`(?i)\b(tomorrow|domani)\b`), kindTomorrow},
	{regexp.MustCompile(`(?i)\b(\d{1,3})\s+(?:days?\s+ago|giorni?\s+fa)\b`), kindRelativeDays},
	{regexp.MustCompile(`(?i)\b(?:last\s+week|(?:la\s+)?settimana\s+scorsa)\b`), kindLastWeek},
	{regexp.MustCompile(`(?i)\b(?:last\s+month|(?:il\s+)?mese\s+scorso)\b`), kindLastMonth},
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`), kindExplicitDate},
}

// temporalMatch is a resolved temporal reference: the matched phrase plus the
// absolute timestamp it denotes.
type temporalMatch struct {
	occurredAt time.Time
	phrase     string
}

// noonUTC anchors day-granularity resolutions at 12:00 UTC so a "today"
// recorded from any timezone lands inside the named day.
func noonUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}

// resolveTemporal finds the first temporal reference in text and resolves it
// to an absolute timestamp relative to now. Returns nil when text carries no
// resolvable reference: an event without one is not recorded rather than
// guessed as "now".
func resolveTemporal(text string, now time.Time) *temporalMatch {
	for _, pattern := range temporalPatterns {
		groups := pattern.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		occurredAt, ok := resolveKind(pattern.kind, groups, now)
		if !ok {
			continue
		}
		return &temporalMatch{occurredAt: occurredAt, phrase: groups[0]}
	}
	return nil
}

func resolveKind(kind temporalKind, groups []string, now time.Time) (time.Time, bool) {
	switch kind {
	case kindToday:
		return noonUTC(now), true
	case kindYesterday:
		return noonUTC(now.AddDate(0, 0, -1)), true
	case kindTomorrow:
		return noonUTC(now.AddDate(0, 0, 1)), true
	case kindRelativeDays:
		days, err := strconv.Atoi(groups[1])
		if err != nil || days <= 0 {
			return time.Time{}, false
		}
		return noonUTC(now.AddDate(0, 0, -days)), true
	case kindLastWeek:
		return noonUTC(now.AddDate(0, 0, -7)), true
	case kindLastMonth:
		return noonUTC(now.AddDate(0, -1, 0)), true
	case kindExplicitDate:
		return resolveExplicitDate(groups, now)
	}
	return time.Time{}, false
}

// resolveExplicitDate handles DD/MM[/YYYY]. Two-digit years are read as
// 2000-based; an impossible calendar date (31/02) does not resolve.
func resolveExplicitDate(groups []string, now time.Time) (time.Time, bool) {
	day, _ := strconv.Atoi(groups[1])
	month, _ := strconv.Atoi(groups[2])
	year := now.UTC().Year()
	if groups[3] != "" {
		parsed, err := strconv.Atoi(groups[3])
		if err != nil {
			return time.Time{}, false
		}
		if parsed < 100 {
			parsed += 2000
		}
		year = parsed
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	resolved := time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
	if resolved.Day() != day || resolved.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return resolved, true
}
