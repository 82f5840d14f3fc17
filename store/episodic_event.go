package store

import "time"

// EventType classifies an episodic event.
type EventType string

const (
	EventTypeMilestone  EventType = "MILESTONE"
	EventTypeProblem    EventType = "PROBLEM"
	EventTypeResolution EventType = "RESOLUTION"
	EventTypeDecision   EventType = "DECISION"
	EventTypeMeeting    EventType = "MEETING"
	EventTypeDeadline   EventType = "DEADLINE"
	EventTypeGeneral    EventType = "GENERAL"
)

// Emotion classifies the emotional tone of an episodic event.
type Emotion string

const (
	EmotionPositive Emotion = "POSITIVE"
	EmotionNegative Emotion = "NEGATIVE"
	EmotionNeutral  Emotion = "NEUTRAL"
)

// EpisodicEvent is a timestamped entry in a single user's history.
// Events are immutable besides explicit deletion by the owning user.
type EpisodicEvent struct {
	OccurredAt      time.Time
	Metadata        map[string]any
	Title           string
	Description     string
	EventType       EventType
	Emotion         Emotion
	RelatedEntities []string
	ID              int64
	CreatedTs       int64
	UpdatedTs       int64
	UserID          int32
}

// FindEpisodicEvent specifies the conditions for finding episodic events.
// Results are always ordered occurred_at DESC.
type FindEpisodicEvent struct {
	ID             *int64
	UserID         *int32
	EventType      *EventType
	Emotion        *Emotion
	OccurredAfter  *time.Time
	OccurredBefore *time.Time
	Limit          int
	Offset         int
}

// DeleteEpisodicEvent specifies the conditions for deleting episodic events.
// UserID scopes the deletion to the owning user when set.
type DeleteEpisodicEvent struct {
	ID     *int64
	UserID *int32
}
