package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

// Embeddings are persisted as JSON text so a postgres deployment can be
// backfilled from a sqlite export, but sqlite itself cannot order by vector
// distance. SearchCollectiveFactsByVector reports that honestly.

func (d *DB) UpsertCollectiveFactEmbedding(ctx context.Context, embedding *store.CollectiveFactEmbedding) (*store.CollectiveFactEmbedding, error) {
	if len(embedding.Embedding) == 0 {
		return nil, errors.New("embedding cannot be empty")
	}
	vector, err := json.Marshal(embedding.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal embedding")
	}

	now := time.Now().Unix()
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO collective_fact_embedding (fact_id, model, embedding, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (fact_id, model) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts`,
		embedding.FactID,
		embedding.Model,
		string(vector),
		now,
		now,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert collective fact embedding")
	}

	return embedding, nil
}

func (d *DB) DeleteCollectiveFactEmbedding(ctx context.Context, factID int64) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM collective_fact_embedding WHERE fact_id = ?`, factID); err != nil {
		return errors.Wrap(err, "failed to delete collective fact embedding")
	}
	return nil
}

func (d *DB) SearchCollectiveFactsByVector(ctx context.Context, opts *store.FactVectorSearchOptions) ([]*store.CollectiveFactWithScore, error) {
	return nil, store.ErrVectorSearchUnsupported
}
