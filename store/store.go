package store

import (
	"context"
	"time"

	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/store/cache"
)

// goldenCacheTTL bounds how long an exact-match golden answer may be served
// from memory. Usage counters can drift from the database within this window;
// the cache is an accelerator, the database stays authoritative.
const goldenCacheTTL = 5 * time.Minute

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache for the golden-answer exact-match hot path.
	goldenCache *cache.LRUCache[string, *GoldenAnswer]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:      driver,
		profile:     profile,
		goldenCache: cache.New[string, *GoldenAnswer](1000, goldenCacheTTL),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CollectiveFact methods.

func (s *Store) AddContribution(ctx context.Context, opts *AddContributionOptions) (*ContributionOutcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.AddContribution(ctx, opts)
}

func (s *Store) RefuteCollectiveFact(ctx context.Context, opts *RefuteCollectiveFactOptions) (*RefuteOutcome, error) {
	return s.driver.RefuteCollectiveFact(ctx, opts)
}

func (s *Store) ListCollectiveFacts(ctx context.Context, find *FindCollectiveFact) ([]*CollectiveFact, error) {
	return s.driver.ListCollectiveFacts(ctx, find)
}

func (s *Store) DeleteCollectiveFact(ctx context.Context, delete *DeleteCollectiveFact) error {
	return s.driver.DeleteCollectiveFact(ctx, delete)
}

func (s *Store) GetCollectiveFactStats(ctx context.Context) (*CollectiveFactStats, error) {
	return s.driver.GetCollectiveFactStats(ctx)
}

func (s *Store) UpsertCollectiveFactEmbedding(ctx context.Context, embedding *CollectiveFactEmbedding) (*CollectiveFactEmbedding, error) {
	return s.driver.UpsertCollectiveFactEmbedding(ctx, embedding)
}

func (s *Store) DeleteCollectiveFactEmbedding(ctx context.Context, factID int64) error {
	return s.driver.DeleteCollectiveFactEmbedding(ctx, factID)
}

func (s *Store) SearchCollectiveFactsByVector(ctx context.Context, opts *FactVectorSearchOptions) ([]*CollectiveFactWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.SearchCollectiveFactsByVector(ctx, opts)
}

// GoldenAnswer methods.

func (s *Store) UpsertGoldenAnswer(ctx context.Context, upsert *GoldenAnswer) (*GoldenAnswer, error) {
	answer, err := s.driver.UpsertGoldenAnswer(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.goldenCache.Remove(answer.NormalizedQuestion)
	return answer, nil
}

// GetGoldenAnswerByQuestion looks up a golden answer by its normalized
// canonical question, serving repeated lookups from the in-memory cache.
func (s *Store) GetGoldenAnswerByQuestion(ctx context.Context, normalized string) (*GoldenAnswer, error) {
	if answer, ok := s.goldenCache.Get(normalized); ok {
		return answer, nil
	}

	list, err := s.driver.ListGoldenAnswers(ctx, &FindGoldenAnswer{
		NormalizedQuestion: &normalized,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	s.goldenCache.SetWithDefaultTTL(normalized, list[0])
	return list[0], nil
}

func (s *Store) ListGoldenAnswers(ctx context.Context, find *FindGoldenAnswer) ([]*GoldenAnswer, error) {
	return s.driver.ListGoldenAnswers(ctx, find)
}

func (s *Store) TouchGoldenAnswer(ctx context.Context, clusterID string) error {
	return s.driver.TouchGoldenAnswer(ctx, clusterID)
}

func (s *Store) GetGoldenAnswerStats(ctx context.Context) (*GoldenAnswerStats, error) {
	return s.driver.GetGoldenAnswerStats(ctx)
}

// EpisodicEvent methods.

func (s *Store) CreateEpisodicEvent(ctx context.Context, create *EpisodicEvent) (*EpisodicEvent, error) {
	return s.driver.CreateEpisodicEvent(ctx, create)
}

func (s *Store) ListEpisodicEvents(ctx context.Context, find *FindEpisodicEvent) ([]*EpisodicEvent, error) {
	return s.driver.ListEpisodicEvents(ctx, find)
}

func (s *Store) DeleteEpisodicEvents(ctx context.Context, delete *DeleteEpisodicEvent) (int64, error) {
	return s.driver.DeleteEpisodicEvents(ctx, delete)
}
