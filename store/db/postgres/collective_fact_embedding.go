package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

// UpsertCollectiveFactEmbedding inserts or updates a collective fact embedding.
func (d *DB) UpsertCollectiveFactEmbedding(ctx context.Context, embedding *store.CollectiveFactEmbedding) (*store.CollectiveFactEmbedding, error) {
	stmt := `
		INSERT INTO collective_fact_embedding (fact_id, embedding, model, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (fact_id, model)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts
	`

	vector := pgvector.NewVector(embedding.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		embedding.FactID,
		vector,
		embedding.Model,
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)

	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert collective fact embedding")
	}

	return embedding, nil
}

// DeleteCollectiveFactEmbedding deletes the embeddings of a collective fact.
func (d *DB) DeleteCollectiveFactEmbedding(ctx context.Context, factID int64) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM collective_fact_embedding WHERE fact_id = $1`, factID); err != nil {
		return errors.Wrap(err, "failed to delete collective fact embedding")
	}
	return nil
}

// SearchCollectiveFactsByVector performs vector similarity search over fact
// embeddings using pgvector cosine distance.
func (d *DB) SearchCollectiveFactsByVector(ctx context.Context, opts *store.FactVectorSearchOptions) ([]*store.CollectiveFactWithScore, error) {
	where, args := []string{"1 = 1"}, []any{}

	args = append(args, pgvector.NewVector(opts.Vector))
	if opts.PromotedOnly {
		where = append(where, "cf.is_promoted = TRUE")
	}
	if opts.Category != nil {
		where, args = append(where, "cf.category = "+placeholder(len(args)+1)), append(args, *opts.Category)
	}

	query := `
		SELECT ` + prefixedFactColumns("cf") + `,
			1 - (e.embedding <=> $1) AS score
		FROM collective_fact_embedding e
		JOIN collective_fact cf ON cf.id = e.fact_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.embedding <=> $1
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, opts.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search collective facts by vector")
	}
	defer rows.Close()

	list := []*store.CollectiveFactWithScore{}
	for rows.Next() {
		fact := &store.CollectiveFact{}
		var metadata []byte
		var score float32
		if err := rows.Scan(
			&fact.ID,
			&fact.Content,
			&fact.ContentHash,
			&fact.Category,
			&fact.Confidence,
			&fact.SourceCount,
			&fact.IsPromoted,
			&fact.FirstLearnedAt,
			&fact.LastConfirmedAt,
			&metadata,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		fact.Metadata = unmarshalMetadata(metadata)
		list = append(list, &store.CollectiveFactWithScore{Fact: fact, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate vector search results")
	}

	return list, nil
}

func prefixedFactColumns(alias string) string {
	cols := strings.Split(collectiveFactColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}
