package episodic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consiglia/memoria/store"
)

func TestClassifyEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want store.EventType
	}{
		{"We finally launched the new site", store.EventTypeMilestone},
		{"Abbiamo completato la migrazione", store.EventTypeMilestone},
		{"There is a bug in the export", store.EventTypeProblem},
		{"C'è un problema con il server", store.EventTypeProblem},
		{"I resolved the ticket this morning", store.EventTypeResolution},
		{"Ho risolto tutto", store.EventTypeResolution},
		{"We decided to go with the smaller office", store.EventTypeDecision},
		{"Abbiamo deciso di rimandare", store.EventTypeDecision},
		{"I have a meeting with the landlord", store.EventTypeMeeting},
		{"Ho una riunione alle tre", store.EventTypeMeeting},
		{"The deadline is approaching fast", store.EventTypeDeadline},
		{"La scadenza è vicina", store.EventTypeDeadline},
		{"I went for a walk", store.EventTypeGeneral},
		{"", store.EventTypeGeneral},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, classifyEventType(tt.text), "text %q", tt.text)
	}
}

func TestClassifyEventTypePriority(t *testing.T) {
	t.Parallel()

	// Ordered rules: the first matching category wins, so a sentence with
	// both problem and resolution keywords classifies as PROBLEM.
	require.Equal(t, store.EventTypeProblem, classifyEventType("fixed the bug in the parser"))
	// Milestone outranks everything.
	require.Equal(t, store.EventTypeMilestone, classifyEventType("launched despite the bug"))
}

func TestClassifyEmotion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want store.Emotion
	}{
		{"I'm so happy with the result", store.EmotionPositive},
		{"Sono davvero felice", store.EmotionPositive},
		{"I'm frustrated with the paperwork", store.EmotionNegative},
		{"Sono preoccupato per la scadenza", store.EmotionNegative},
		{"The shipment arrived", store.EmotionNeutral},
		{"", store.EmotionNeutral},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, classifyEmotion(tt.text), "text %q", tt.text)
	}
}
