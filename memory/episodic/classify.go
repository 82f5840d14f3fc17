package episodic

import (
	"strings"

	"github.com/consiglia/memoria/store"
)

// Classification is keyword-driven: ordered (tag, keyword-set) pairs,
// evaluated in priority order, first match wins. Kept as data so new
// keywords are a table edit, not new control flow.

type eventTypeRule struct {
	eventType store.EventType
	keywords  []string
}

var eventTypeRules = []eventTypeRule{
	{store.EventTypeMilestone, []string{
		"launched", "completed", "finished", "achieved", "released", "milestone", "shipped",
		"lanciato", "completato", "finito", "raggiunto", "rilasciato", "consegnato",
	}},
	{store.EventTypeProblem, []string{
		"problem", "issue", "bug", "error", "failed", "broken", "crashed", "stuck",
		"problema", "errore", "fallito", "guasto", "bloccato", "rotto",
	}},
	{store.EventTypeResolution, []string{
		"fixed", "resolved", "solved", "repaired",
		"risolto", "sistemato", "riparato",
	}},
	{store.EventTypeDecision, []string{
		"decided", "chose", "decision", "agreed",
		"deciso", "scelto", "decisione", "concordato",
	}},
	{store.EventTypeMeeting, []string{
		"meeting", "call", "appointment", "interview",
		"riunione", "incontro", "appuntamento", "chiamata", "colloquio",
	}},
	{store.EventTypeDeadline, []string{
		"deadline", "due date", "expires",
		"scadenza", "consegna entro", "scade",
	}},
}

type emotionRule struct {
	emotion  store.Emotion
	keywords []string
}

var emotionRules = []emotionRule{
	{store.EmotionPositive, []string{
		"happy", "great", "excellent", "excited", "awesome", "love", "proud", "glad",
		"felice", "contento", "ottimo", "fantastico", "entusiasta", "orgoglioso",
	}},
	{store.EmotionNegative, []string{
		"sad", "angry", "frustrated", "worried", "terrible", "hate", "afraid", "upset",
		"triste", "arrabbiato", "frustrato", "preoccupato", "terribile", "spaventato",
	}},
}

func classifyEventType(text string) store.EventType {
	lowered := strings.ToLower(text)
	for _, rule := range eventTypeRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.eventType
			}
		}
	}
	return store.EventTypeGeneral
}

func classifyEmotion(text string) store.Emotion {
	lowered := strings.ToLower(text)
	for _, rule := range emotionRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.emotion
			}
		}
	}
	return store.EmotionNeutral
}
