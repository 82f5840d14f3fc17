package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/memory/collective"
	"github.com/consiglia/memoria/memory/episodic"
	"github.com/consiglia/memoria/memory/golden"
	"github.com/consiglia/memoria/store"
	"github.com/consiglia/memoria/store/db"
)

func newTestDriver(t *testing.T) (store.Driver, *profile.Profile) {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   t.TempDir(),
	}
	p.FromEnv()
	p.PromotionThreshold = 1
	require.NoError(t, p.Validate())

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	return driver, p
}

func newTestOrchestrator(t *testing.T, driver store.Driver, p *profile.Profile, opts *Options) (*Orchestrator, *store.Store) {
	t.Helper()

	s := store.New(driver, p)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	c := collective.New(s, p, nil, nil)
	g := golden.New(s, p, nil, nil)
	e := episodic.New(s, nil)
	return New(s, c, g, e, nil, opts), s
}

type stubProfileProvider struct {
	facts []string
	err   error
}

func (s *stubProfileProvider) FactsForUser(_ context.Context, _ int32) ([]string, error) {
	return s.facts, s.err
}

type stubExtractor struct {
	facts []RawFact
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, _, _ string) ([]RawFact, error) {
	return s.facts, s.err
}

type stubEntityReader struct {
	entities []string
	err      error
}

func (s *stubEntityReader) EntitiesForQuery(_ context.Context, _ string, _ int) ([]string, error) {
	return s.entities, s.err
}

// flakyEpisodicDriver fails every episodic read while the rest of the store
// keeps working.
type flakyEpisodicDriver struct {
	store.Driver
}

func (d *flakyEpisodicDriver) ListEpisodicEvents(_ context.Context, _ *store.FindEpisodicEvent) ([]*store.EpisodicEvent, error) {
	return nil, errors.New("episodic backend down")
}

func TestInitializeIdempotent(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, _ := newTestOrchestrator(t, driver, p, nil)

	ctx := context.Background()
	require.False(t, o.Initialized())
	o.Initialize(ctx)
	o.Initialize(ctx)
	require.True(t, o.Initialized())
}

func TestUserContext(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, s := newTestOrchestrator(t, driver, p, &Options{
		ProfileFacts: &stubProfileProvider{facts: []string{"lives in Milan"}},
		Entities:     &stubEntityReader{entities: []string{"Milan"}},
	})
	ctx := context.Background()

	c := collective.New(s, p, nil, nil)
	_, err := c.AddContribution(ctx, 1, "The metro closes at midnight", "")
	require.NoError(t, err)

	e := episodic.New(s, nil)
	_, err = e.ExtractAndSaveEvent(ctx, 7, "we signed the lease today", "")
	require.NoError(t, err)

	t.Run("without query", func(t *testing.T) {
		mc := o.UserContext(ctx, 7, "")
		require.True(t, mc.HasData)
		require.Equal(t, []string{"lives in Milan"}, mc.ProfileFacts)
		require.Equal(t, []string{"The metro closes at midnight"}, mc.CollectiveFacts)
		require.Contains(t, mc.TimelineSummary, "we signed the lease")
		require.Empty(t, mc.KGEntities, "knowledge graph is only consulted with a query")
		require.Equal(t, 1, mc.Counters["profile_facts"])
		require.Equal(t, 1, mc.Counters["collective_facts"])
	})

	t.Run("with query", func(t *testing.T) {
		// No embedder: the collective source falls back to deterministic
		// ordering, the knowledge graph is consulted.
		mc := o.UserContext(ctx, 7, "when does the metro close")
		require.True(t, mc.HasData)
		require.Equal(t, []string{"The metro closes at midnight"}, mc.CollectiveFacts)
		require.Equal(t, []string{"Milan"}, mc.KGEntities)
	})
}

func TestUserContextSourceIsolation(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, s := newTestOrchestrator(t, &flakyEpisodicDriver{driver}, p, &Options{
		ProfileFacts: &stubProfileProvider{facts: []string{"prefers email"}},
	})
	ctx := context.Background()

	c := collective.New(s, p, nil, nil)
	_, err := c.AddContribution(ctx, 1, "Offices close in August", "")
	require.NoError(t, err)

	mc := o.UserContext(ctx, 7, "")
	require.True(t, mc.HasData)
	require.Equal(t, []string{"prefers email"}, mc.ProfileFacts)
	require.Equal(t, []string{"Offices close in August"}, mc.CollectiveFacts)
	require.Equal(t, "", mc.TimelineSummary)
}

func TestUserContextCollaboratorFailure(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, _ := newTestOrchestrator(t, driver, p, &Options{
		ProfileFacts: &stubProfileProvider{err: errors.New("profile service down")},
		Entities:     &stubEntityReader{err: errors.New("graph down")},
	})

	mc := o.UserContext(context.Background(), 7, "some query")
	require.Empty(t, mc.ProfileFacts)
	require.Empty(t, mc.KGEntities)
	require.Equal(t, 1, mc.Counters["profile_errors"])
	require.Equal(t, 1, mc.Counters["kg_errors"])
	require.False(t, mc.HasData)
}

func TestUserContextWithoutCollaborators(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, _ := newTestOrchestrator(t, driver, p, nil)

	mc := o.UserContext(context.Background(), 7, "")
	require.NotNil(t, mc)
	require.False(t, mc.HasData)
	require.NotNil(t, mc.ProfileFacts)
	require.NotNil(t, mc.CollectiveFacts)
	require.NotNil(t, mc.KGEntities)
}

func TestProcessConversation(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, s := newTestOrchestrator(t, driver, p, &Options{
		Extractor: &stubExtractor{facts: []RawFact{
			{Content: "The landlord speaks English", Category: "housing"},
			{Content: "Rent is paid quarterly", Category: "housing"},
		}},
	})
	ctx := context.Background()

	result := o.ProcessConversation(ctx, 7, "we talked about rent today", "noted")
	require.Empty(t, result.Error)
	require.NotEmpty(t, result.TurnID)
	require.Equal(t, 2, result.FactsExtracted)
	require.Equal(t, 2, result.FactsSaved)

	facts, err := s.ListCollectiveFacts(ctx, &store.FindCollectiveFact{})
	require.NoError(t, err)
	require.Len(t, facts, 2)

	// The episodic side-effect is best-effort but expected here.
	events, err := s.ListEpisodicEvents(ctx, &store.FindEpisodicEvent{})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestProcessConversationExtractorFailure(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, _ := newTestOrchestrator(t, driver, p, &Options{
		Extractor: &stubExtractor{err: errors.New("llm timeout")},
	})

	result := o.ProcessConversation(context.Background(), 7, "hello today", "hi")
	require.NotEmpty(t, result.Error)
	require.Zero(t, result.FactsExtracted)
	require.Zero(t, result.FactsSaved)
}

func TestProcessConversationFactIsolation(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, _ := newTestOrchestrator(t, driver, p, &Options{
		Extractor: &stubExtractor{facts: []RawFact{
			{Content: "", Category: ""}, // invalid, skipped
			{Content: "Valid fact", Category: ""},
		}},
	})

	result := o.ProcessConversation(context.Background(), 7, "no temporal phrase", "ok")
	require.Empty(t, result.Error)
	require.Equal(t, 2, result.FactsExtracted)
	require.Equal(t, 1, result.FactsSaved)
}

func TestProcessConversationWithoutExtractor(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, _ := newTestOrchestrator(t, driver, p, nil)

	result := o.ProcessConversation(context.Background(), 7, "hello", "hi")
	require.Empty(t, result.Error)
	require.Zero(t, result.FactsExtracted)
	require.GreaterOrEqual(t, result.ProcessingTimeMs, int64(0))
}

func TestSearchFactsFailSoft(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, s := newTestOrchestrator(t, driver, p, nil)
	ctx := context.Background()

	c := collective.New(s, p, nil, nil)
	_, err := c.AddContribution(ctx, 1, "Taxis accept cards", "")
	require.NoError(t, err)

	// No embedder configured: the search silently degrades to the
	// deterministic promoted-fact ordering.
	require.Equal(t, []string{"Taxis accept cards"}, o.SearchFacts(ctx, "payment", 10))
	require.Equal(t, []string{"Taxis accept cards"}, o.RelevantFactsForQuery(ctx, 7, "payment"))
	require.Equal(t, []string{}, o.RelevantFactsForQuery(ctx, 7, ""))
}

func TestGetStats(t *testing.T) {
	t.Parallel()
	driver, p := newTestDriver(t)
	o, s := newTestOrchestrator(t, driver, p, nil)
	ctx := context.Background()

	c := collective.New(s, p, nil, nil)
	_, err := c.AddContribution(ctx, 1, "A promoted fact", "")
	require.NoError(t, err)

	stats := o.GetStats(ctx)
	require.NotNil(t, stats.Collective)
	require.Equal(t, 1, stats.Collective.TotalFacts)
	require.NotNil(t, stats.Golden)
	require.Zero(t, stats.Golden.TotalGoldenAnswers)
}
