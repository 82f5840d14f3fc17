package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

// UpsertGoldenAnswer inserts or replaces a golden answer cluster.
// The write path belongs to the external clustering process; usage counters
// are preserved on update.
func (d *DB) UpsertGoldenAnswer(ctx context.Context, upsert *store.GoldenAnswer) (*store.GoldenAnswer, error) {
	sources, err := marshalJSON(upsert.Sources, "[]")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal sources")
	}

	var embedding any
	if len(upsert.Embedding) > 0 {
		embedding = pgvector.NewVector(upsert.Embedding)
	}

	stmt := `
		INSERT INTO golden_answer (cluster_id, canonical_question, normalized_question, canonical_embedding, answer, sources, confidence)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (cluster_id)
		DO UPDATE SET
			canonical_question = EXCLUDED.canonical_question,
			normalized_question = EXCLUDED.normalized_question,
			canonical_embedding = EXCLUDED.canonical_embedding,
			answer = EXCLUDED.answer,
			sources = EXCLUDED.sources,
			confidence = EXCLUDED.confidence
		RETURNING usage_count, last_used
	`

	var lastUsed sql.NullTime
	err = d.db.QueryRowContext(ctx, stmt,
		upsert.ClusterID,
		upsert.CanonicalQuestion,
		upsert.NormalizedQuestion,
		embedding,
		upsert.Answer,
		sources,
		upsert.Confidence,
	).Scan(&upsert.UsageCount, &lastUsed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert golden answer")
	}
	if lastUsed.Valid {
		upsert.LastUsed = &lastUsed.Time
	}

	return upsert, nil
}

func (d *DB) ListGoldenAnswers(ctx context.Context, find *store.FindGoldenAnswer) ([]*store.GoldenAnswer, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ClusterID != nil {
		where, args = append(where, "cluster_id = "+placeholder(len(args)+1)), append(args, *find.ClusterID)
	}
	if find.NormalizedQuestion != nil {
		where, args = append(where, "normalized_question = "+placeholder(len(args)+1)), append(args, *find.NormalizedQuestion)
	}

	embeddingColumn := "NULL"
	if find.WithEmbeddings {
		// The semantic path only needs clusters that carry an embedding.
		embeddingColumn = "canonical_embedding"
		where = append(where, "canonical_embedding IS NOT NULL")
	}

	query := `SELECT cluster_id, canonical_question, normalized_question, ` + embeddingColumn + `, answer, sources, confidence, usage_count, last_used
		FROM golden_answer WHERE ` + strings.Join(where, " AND ") + ` ORDER BY usage_count DESC, cluster_id ASC`

	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list golden answers")
	}
	defer rows.Close()

	list := []*store.GoldenAnswer{}
	for rows.Next() {
		answer := &store.GoldenAnswer{}
		var vector pgvector.Vector
		var vectorDest any = new(sql.NullString) // literal NULL column
		if find.WithEmbeddings {
			vectorDest = &vector
		}
		var sources []byte
		var lastUsed sql.NullTime
		if err := rows.Scan(
			&answer.ClusterID,
			&answer.CanonicalQuestion,
			&answer.NormalizedQuestion,
			vectorDest,
			&answer.Answer,
			&sources,
			&answer.Confidence,
			&answer.UsageCount,
			&lastUsed,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan golden answer")
		}
		if find.WithEmbeddings {
			answer.Embedding = vector.Slice()
		}
		answer.Sources = unmarshalStringSlice(sources)
		if lastUsed.Valid {
			answer.LastUsed = &lastUsed.Time
		}
		list = append(list, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate golden answers")
	}

	return list, nil
}

// TouchGoldenAnswer increments usage_count and stamps last_used.
func (d *DB) TouchGoldenAnswer(ctx context.Context, clusterID string) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE golden_answer SET usage_count = usage_count + 1, last_used = $2 WHERE cluster_id = $1`,
		clusterID, time.Now(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to touch golden answer")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read touch rows affected")
	}
	if rows == 0 {
		return errors.Errorf("golden answer %s not found", clusterID)
	}
	return nil
}

func (d *DB) GetGoldenAnswerStats(ctx context.Context) (*store.GoldenAnswerStats, error) {
	stats := &store.GoldenAnswerStats{}

	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(usage_count), 0), COALESCE(AVG(confidence), 0)
		FROM golden_answer`,
	).Scan(&stats.TotalGoldenAnswers, &stats.TotalHits, &stats.AvgConfidence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate golden answer stats")
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT cluster_id, canonical_question, usage_count
		FROM golden_answer
		ORDER BY usage_count DESC, cluster_id ASC
		LIMIT 10`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list top golden answers")
	}
	defer rows.Close()

	for rows.Next() {
		usage := &store.GoldenAnswerUsage{}
		if err := rows.Scan(&usage.ClusterID, &usage.CanonicalQuestion, &usage.UsageCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan golden answer usage")
		}
		stats.TopByUsage = append(stats.TopByUsage, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate golden answer usage")
	}

	return stats, nil
}
