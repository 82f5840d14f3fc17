// Package episodic implements per-user event memory: a timestamped log of
// discrete events extracted from conversation text. Extraction is
// precision-over-recall: a message without a resolvable temporal reference
// produces no event rather than one guessed at "now".
package episodic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/consiglia/memoria/ai/metrics"
	"github.com/consiglia/memoria/store"
)

const (
	maxTitleLength        = 100
	contextSummaryWindow  = 30 * 24 * time.Hour
	defaultSummaryEvents  = 5
	defaultTimelineEvents = 50
)

var eventTypeEmoji = map[store.EventType]string{
	store.EventTypeMilestone:  "🎯",
	store.EventTypeProblem:    "⚠️",
	store.EventTypeResolution: "✅",
	store.EventTypeDecision:   "💡",
	store.EventTypeMeeting:    "📅",
	store.EventTypeDeadline:   "⏰",
	store.EventTypeGeneral:    "📝",
}

// TimelineFilter narrows Timeline queries. Zero value means no filtering.
type TimelineFilter struct {
	Start     *time.Time
	End       *time.Time
	EventType *store.EventType
	Emotion   *store.Emotion
	Limit     int
	Offset    int
}

// MemoryStore is the episodic memory component.
type MemoryStore struct {
	store    *store.Store
	exporter *metrics.PrometheusExporter

	// now is swappable for deterministic extraction tests.
	now func() time.Time
}

// New creates an episodic memory store. exporter may be nil.
func New(s *store.Store, exporter *metrics.PrometheusExporter) *MemoryStore {
	return &MemoryStore{
		store:    s,
		exporter: exporter,
		now:      time.Now,
	}
}

// ExtractAndSaveEvent attempts to extract a timestamped event from a
// conversation turn. The temporal reference is resolved from message first,
// then aiResponse; when neither carries one, no event is recorded and nil is
// returned without error.
func (m *MemoryStore) ExtractAndSaveEvent(ctx context.Context, userID int32, message, aiResponse string) (*store.EpisodicEvent, error) {
	now := m.now()
	match := resolveTemporal(message, now)
	source := message
	if match == nil && aiResponse != "" {
		match = resolveTemporal(aiResponse, now)
		source = aiResponse
	}
	if match == nil {
		m.exporter.RecordEpisodicEvent("skipped")
		return nil, nil
	}

	event, err := m.store.CreateEpisodicEvent(ctx, &store.EpisodicEvent{
		UserID:      userID,
		Title:       buildTitle(source, match.phrase),
		Description: strings.TrimSpace(message),
		EventType:   classifyEventType(message + " " + aiResponse),
		Emotion:     classifyEmotion(message + " " + aiResponse),
		OccurredAt:  match.occurredAt,
	})
	if err != nil {
		m.exporter.RecordEpisodicEvent("error")
		return nil, fmt.Errorf("create episodic event: %w", err)
	}

	m.exporter.RecordEpisodicEvent("saved")
	slog.Debug("episodic event extracted",
		slog.Int64("event_id", event.ID),
		slog.Int("user_id", int(userID)),
		slog.String("event_type", string(event.EventType)),
		slog.Time("occurred_at", event.OccurredAt))

	return event, nil
}

// Timeline returns the user's events, strictly occurred_at descending.
func (m *MemoryStore) Timeline(ctx context.Context, userID int32, filter *TimelineFilter) ([]*store.EpisodicEvent, error) {
	if filter == nil {
		filter = &TimelineFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTimelineEvents
	}
	return m.store.ListEpisodicEvents(ctx, &store.FindEpisodicEvent{
		UserID:         &userID,
		EventType:      filter.EventType,
		Emotion:        filter.Emotion,
		OccurredAfter:  filter.Start,
		OccurredBefore: filter.End,
		Limit:          limit,
		Offset:         filter.Offset,
	})
}

// ContextSummary formats the user's most recent events (last 30 days) into a
// short emoji-tagged digest for prompt injection. Returns the empty string,
// never an error, when there is nothing to show.
func (m *MemoryStore) ContextSummary(ctx context.Context, userID int32, limit int) string {
	if limit <= 0 {
		limit = defaultSummaryEvents
	}
	start := m.now().Add(-contextSummaryWindow)

	events, err := m.store.ListEpisodicEvents(ctx, &store.FindEpisodicEvent{
		UserID:        &userID,
		OccurredAfter: &start,
		Limit:         limit,
	})
	if err != nil {
		slog.Debug("failed to load episodic summary", "user_id", userID, "error", err)
		return ""
	}
	if len(events) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent events:\n")
	for i, event := range events {
		if i > 0 {
			sb.WriteString("\n")
		}
		emoji := eventTypeEmoji[event.EventType]
		if emoji == "" {
			emoji = eventTypeEmoji[store.EventTypeGeneral]
		}
		fmt.Fprintf(&sb, "%s %s: %s", emoji, event.OccurredAt.UTC().Format("2006-01-02"), event.Title)
	}
	return sb.String()
}

// DeleteEvent removes an event if and only if it belongs to userID. The
// ownership check lives in the DELETE predicate itself.
func (m *MemoryStore) DeleteEvent(ctx context.Context, eventID int64, userID int32) (bool, error) {
	deleted, err := m.store.DeleteEpisodicEvents(ctx, &store.DeleteEpisodicEvent{
		ID:     &eventID,
		UserID: &userID,
	})
	if err != nil {
		return false, fmt.Errorf("delete episodic event: %w", err)
	}
	return deleted > 0, nil
}

// buildTitle derives an event title: the first sentence of text with the
// temporal phrase stripped, truncated to 100 characters.
func buildTitle(text, temporalPhrase string) string {
	sentence := strings.TrimSpace(text)
	if idx := strings.IndexAny(sentence, ".!?\n"); idx > 0 {
		sentence = sentence[:idx]
	}

	if temporalPhrase != "" {
		lowered := strings.ToLower(sentence)
		if idx := strings.Index(lowered, strings.ToLower(temporalPhrase)); idx >= 0 {
			sentence = sentence[:idx] + sentence[idx+len(temporalPhrase):]
		}
	}

	sentence = strings.Join(strings.Fields(sentence), " ")
	// Stripping a mid-sentence phrase can orphan its punctuation.
	sentence = strings.ReplaceAll(sentence, " ,", ",")
	sentence = strings.ReplaceAll(sentence, " ;", ";")
	sentence = strings.Trim(sentence, " ,;:-")

	runes := []rune(sentence)
	if len(runes) > maxTitleLength {
		sentence = string(runes[:maxTitleLength])
	}
	return sentence
}
