package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

func (d *DB) CreateEpisodicEvent(ctx context.Context, create *store.EpisodicEvent) (*store.EpisodicEvent, error) {
	relatedEntities, err := marshalJSON(create.RelatedEntities, "[]")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal related entities")
	}
	metadata, err := marshalJSON(create.Metadata, "{}")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	now := time.Now().Unix()
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO episodic_event (user_id, title, description, event_type, emotion, occurred_ts, related_entities, metadata, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_ts, updated_ts`,
		create.UserID,
		create.Title,
		create.Description,
		string(create.EventType),
		string(create.Emotion),
		create.OccurredAt.Unix(),
		string(relatedEntities),
		string(metadata),
		now,
		now,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create episodic event")
	}

	return create, nil
}

func (d *DB) ListEpisodicEvents(ctx context.Context, find *store.FindEpisodicEvent) ([]*store.EpisodicEvent, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.EventType != nil {
		where, args = append(where, "event_type = ?"), append(args, string(*find.EventType))
	}
	if find.Emotion != nil {
		where, args = append(where, "emotion = ?"), append(args, string(*find.Emotion))
	}
	if find.OccurredAfter != nil {
		where, args = append(where, "occurred_ts >= ?"), append(args, find.OccurredAfter.Unix())
	}
	if find.OccurredBefore != nil {
		where, args = append(where, "occurred_ts <= ?"), append(args, find.OccurredBefore.Unix())
	}

	query := `SELECT id, user_id, title, description, event_type, emotion, occurred_ts, related_entities, metadata, created_ts, updated_ts
		FROM episodic_event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY occurred_ts DESC, id DESC`

	limit := find.Limit
	if limit <= 0 && find.Offset > 0 {
		// sqlite rejects OFFSET without LIMIT.
		limit = 1000
	}
	if limit > 0 {
		if limit > 1000 {
			limit = 1000
		}
		query += " LIMIT ?"
		args = append(args, limit)
		if find.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list episodic events")
	}
	defer rows.Close()

	list := make([]*store.EpisodicEvent, 0)
	for rows.Next() {
		event := &store.EpisodicEvent{}
		var eventType, emotion string
		var occurredTs int64
		var relatedEntities, metadata []byte
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Title,
			&event.Description,
			&eventType,
			&emotion,
			&occurredTs,
			&relatedEntities,
			&metadata,
			&event.CreatedTs,
			&event.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan episodic event")
		}
		event.EventType = store.EventType(eventType)
		event.Emotion = store.Emotion(emotion)
		event.OccurredAt = time.Unix(occurredTs, 0).UTC()
		event.RelatedEntities = unmarshalStringSlice(relatedEntities)
		event.Metadata = unmarshalMetadata(metadata)
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate episodic events")
	}

	return list, nil
}

func (d *DB) DeleteEpisodicEvents(ctx context.Context, delete *store.DeleteEpisodicEvent) (int64, error) {
	if delete == nil || delete.ID == nil {
		return 0, errors.New("delete parameter requires an id")
	}

	where, args := []string{"id = ?"}, []any{*delete.ID}
	if delete.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *delete.UserID)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM episodic_event WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete episodic events")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read delete rows affected")
	}
	return affected, nil
}
