// Package orchestrator coordinates the memory components around a chat turn:
// context assembly before generation, fact persistence after. Every entry
// point is fail-soft; a degraded memory layer thins the context but never
// breaks the conversation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/consiglia/memoria/ai/metrics"
	"github.com/consiglia/memoria/memory/collective"
	"github.com/consiglia/memoria/memory/episodic"
	"github.com/consiglia/memoria/memory/golden"
	"github.com/consiglia/memoria/store"
)

// RawFact is a fact produced by the external extractor.
type RawFact struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// ProfileFactProvider supplies per-user profile facts owned by an external
// store. Optional; nil contributes an empty section to the context.
type ProfileFactProvider interface {
	FactsForUser(ctx context.Context, userID int32) ([]string, error)
}

// FactExtractor turns a conversation turn into raw facts. Optional.
type FactExtractor interface {
	Extract(ctx context.Context, userMessage, aiResponse string) ([]RawFact, error)
}

// EntityReader reads knowledge-graph entities relevant to a query. Optional.
type EntityReader interface {
	EntitiesForQuery(ctx context.Context, query string, limit int) ([]string, error)
}

// MemoryContext is the assembled pre-generation context for one user.
type MemoryContext struct {
	UserID          int32          `json:"user_id"`
	ProfileFacts    []string       `json:"profile_facts"`
	CollectiveFacts []string       `json:"collective_facts"`
	TimelineSummary string         `json:"timeline_summary"`
	KGEntities      []string       `json:"kg_entities"`
	Summary         string         `json:"summary"`
	Counters        map[string]int `json:"counters"`
	HasData         bool           `json:"has_data"`
	LastActivity    time.Time      `json:"last_activity"`
}

// ProcessResult reports post-conversation fact persistence. Error carries
// the catastrophic-failure description; counters are zero in that case.
// TurnID correlates log lines emitted while processing this turn.
type ProcessResult struct {
	TurnID           string `json:"turn_id"`
	FactsExtracted   int    `json:"facts_extracted"`
	FactsSaved       int    `json:"facts_saved"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	Error            string `json:"error,omitempty"`
}

// Stats aggregates sub-store statistics. Sections are nil when the
// underlying store is unreachable.
type Stats struct {
	Collective *store.CollectiveFactStats `json:"collective"`
	Golden     *store.GoldenAnswerStats   `json:"golden"`
}

// Orchestrator fans out to the memory components. Construct with New and
// inject it; there is deliberately no package-level instance.
type Orchestrator struct {
	store      *store.Store
	collective *collective.MemoryStore
	golden     *golden.Cache
	episodic   *episodic.MemoryStore
	exporter   *metrics.PrometheusExporter

	profileFacts ProfileFactProvider
	extractor    FactExtractor
	entities     EntityReader

	initOnce    sync.Once
	initialized bool
}

// Options carries the optional external collaborators.
type Options struct {
	ProfileFacts ProfileFactProvider
	Extractor    FactExtractor
	Entities     EntityReader
}

// New creates an orchestrator over the given components. opts may be nil.
func New(s *store.Store, c *collective.MemoryStore, g *golden.Cache, e *episodic.MemoryStore, exporter *metrics.PrometheusExporter, opts *Options) *Orchestrator {
	o := &Orchestrator{
		store:      s,
		collective: c,
		golden:     g,
		episodic:   e,
		exporter:   exporter,
	}
	if opts != nil {
		o.profileFacts = opts.ProfileFacts
		o.extractor = opts.Extractor
		o.entities = opts.Entities
	}
	return o
}

// Initialize verifies store reachability. Idempotent; a failed check leaves
// the orchestrator in degraded mode rather than blocking startup.
func (o *Orchestrator) Initialize(ctx context.Context) {
	o.initOnce.Do(func() {
		o.initialized = true
		if db := o.store.GetDriver().GetDB(); db != nil {
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("memory store unreachable, continuing in degraded mode", "error", err)
				return
			}
		}
		slog.Info("memory orchestrator initialized")
	})
}

// Initialized reports whether Initialize has run.
func (o *Orchestrator) Initialized() bool {
	return o.initialized
}

// UserContext assembles the memory context for a chat turn. The four sources
// are fetched concurrently and isolated from one another: a failing source
// contributes an empty section and is recorded in Counters, never aborting
// the rest. HasData is the OR across everything retrieved.
func (o *Orchestrator) UserContext(ctx context.Context, userID int32, query string) *MemoryContext {
	mc := &MemoryContext{
		UserID:          userID,
		ProfileFacts:    []string{},
		CollectiveFacts: []string{},
		KGEntities:      []string{},
		Counters:        map[string]int{},
		LastActivity:    time.Now().UTC(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if o.profileFacts == nil {
			return nil
		}
		facts, err := o.profileFacts.FactsForUser(gctx, userID)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			slog.Debug("profile fact fetch failed", "user_id", userID, "error", err)
			mc.Counters["profile_errors"]++
			return nil
		}
		mc.ProfileFacts = facts
		return nil
	})

	g.Go(func() error {
		var facts []string
		if query != "" {
			facts = o.collective.RelevantContext(gctx, query, 10)
		} else {
			var err error
			facts, err = o.collective.CollectiveContext(gctx, "", 10)
			if err != nil {
				slog.Debug("collective context fetch failed", "error", err)
				mu.Lock()
				mc.Counters["collective_errors"]++
				mu.Unlock()
				return nil
			}
		}
		mu.Lock()
		mc.CollectiveFacts = facts
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		summary := o.episodic.ContextSummary(gctx, userID, 5)
		mu.Lock()
		mc.TimelineSummary = summary
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		if o.entities == nil || query == "" {
			return nil
		}
		entities, err := o.entities.EntitiesForQuery(gctx, query, 10)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			slog.Debug("knowledge graph fetch failed", "error", err)
			mc.Counters["kg_errors"]++
			return nil
		}
		mc.KGEntities = entities
		return nil
	})

	// Goroutines always return nil; failures are captured per source.
	_ = g.Wait()

	if mc.ProfileFacts == nil {
		mc.ProfileFacts = []string{}
	}
	if mc.CollectiveFacts == nil {
		mc.CollectiveFacts = []string{}
	}
	if mc.KGEntities == nil {
		mc.KGEntities = []string{}
	}

	mc.Counters["profile_facts"] = len(mc.ProfileFacts)
	mc.Counters["collective_facts"] = len(mc.CollectiveFacts)
	mc.Counters["kg_entities"] = len(mc.KGEntities)
	mc.HasData = len(mc.ProfileFacts) > 0 || len(mc.CollectiveFacts) > 0 ||
		mc.TimelineSummary != "" || len(mc.KGEntities) > 0
	mc.Summary = fmt.Sprintf("%d profile facts, %d collective facts, %d entities",
		len(mc.ProfileFacts), len(mc.CollectiveFacts), len(mc.KGEntities))

	return mc
}

// ProcessConversation extracts and persists facts from a finished turn.
// Each fact is persisted in isolation so one failing insert never aborts the
// batch; the episodic extraction afterwards is best-effort. Never returns an
// error to the caller.
func (o *Orchestrator) ProcessConversation(ctx context.Context, userID int32, userMessage, aiResponse string) *ProcessResult {
	start := time.Now()
	result := &ProcessResult{TurnID: uuid.NewString()}

	defer func() {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		o.exporter.RecordConversation(time.Since(start), result.Error == "")
	}()

	if o.extractor != nil {
		facts, err := o.extractor.Extract(ctx, userMessage, aiResponse)
		if err != nil {
			slog.Warn("fact extraction failed", "turn_id", result.TurnID, "user_id", userID, "error", err)
			result.Error = fmt.Sprintf("fact extraction failed: %v", err)
			return result
		}
		result.FactsExtracted = len(facts)

		for _, fact := range facts {
			outcome, err := o.collective.AddContribution(ctx, userID, fact.Content, fact.Category)
			if err != nil {
				slog.Debug("fact persistence failed", "turn_id", result.TurnID, "user_id", userID, "error", err)
				continue
			}
			if outcome.Status != collective.StatusSkipped {
				result.FactsSaved++
			}
		}
	}

	if _, err := o.episodic.ExtractAndSaveEvent(ctx, userID, userMessage, aiResponse); err != nil {
		slog.Debug("episodic extraction failed", "user_id", userID, "error", err)
	}

	return result
}

// LookupGoldenAnswer resolves a question against the golden answer cache.
// Nil means miss; this path never errors.
func (o *Orchestrator) LookupGoldenAnswer(ctx context.Context, query string) *golden.Match {
	return o.golden.Lookup(ctx, query)
}

// GetStats aggregates sub-store statistics, fail-soft per section.
func (o *Orchestrator) GetStats(ctx context.Context) *Stats {
	stats := &Stats{}

	collectiveStats, err := o.collective.Stats(ctx)
	if err != nil {
		slog.Debug("collective stats unavailable", "error", err)
	} else {
		stats.Collective = collectiveStats
	}

	goldenStats, err := o.golden.Stats(ctx)
	if err != nil {
		slog.Debug("golden stats unavailable", "error", err)
	} else {
		stats.Golden = goldenStats
	}

	return stats
}

// SearchFacts returns promoted collective facts relevant to query. Empty on
// any internal failure.
func (o *Orchestrator) SearchFacts(ctx context.Context, query string, limit int) []string {
	return o.collective.RelevantContext(ctx, query, limit)
}

// RelevantFactsForQuery is the per-turn retrieval pass-through used by the
// host before generation.
func (o *Orchestrator) RelevantFactsForQuery(ctx context.Context, userID int32, query string) []string {
	if query == "" {
		return []string{}
	}
	return o.collective.RelevantContext(ctx, query, 10)
}
