package db

import (
	"context"
	"fmt"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// SaveEmbeddingRecords persists index records, replacing existing records for the same profile
func (s *Store) SaveEmbeddingRecords(ctx context.Context, records []models.EmbeddingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin record save", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO profile_embeddings (profile_id, summary, embedding, model_version, tags, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return unavailable("prepare record save", err)
	}
	defer stmt.Close()

	for _, r := range records {
		embeddingJSON, err := encodeList(r.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode embedding for %s: %w", r.ProfileID, err)
		}
		tagsJSON, err := encodeList(r.Tags.List())
		if err != nil {
			return fmt.Errorf("failed to encode tags for %s: %w", r.ProfileID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ProfileID, r.Summary, embeddingJSON, r.ModelVersion, tagsJSON, r.IndexedAt); err != nil {
			return unavailable("save embedding record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit record save", err)
	}
	return nil
}

// LoadEmbeddingRecords returns every persisted record joined with its profile timestamp.
// Records whose profile no longer exists are skipped.
func (s *Store) LoadEmbeddingRecords(ctx context.Context) ([]models.EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.profile_id, e.summary, e.embedding, e.model_version, e.tags, e.indexed_at, p.collected_at
		FROM profile_embeddings e
		JOIN profiles p ON p.id = e.profile_id
		ORDER BY e.profile_id
	`)
	if err != nil {
		return nil, unavailable("load embedding records", err)
	}
	defer rows.Close()

	var records []models.EmbeddingRecord
	for rows.Next() {
		var r models.EmbeddingRecord
		var embeddingRaw, tagsRaw any
		if err := rows.Scan(&r.ProfileID, &r.Summary, &embeddingRaw, &r.ModelVersion, &tagsRaw, &r.IndexedAt, &r.CollectedAt); err != nil {
			return nil, unavailable("scan embedding record", err)
		}
		r.Vector = decodeVector(embeddingRaw)
		r.Tags = models.TagsFromList(decodeStrings(tagsRaw))
		r.CollectedAt = r.CollectedAt.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate embedding records", err)
	}
	return records, nil
}

// ProfilesByID fetches profiles for the given ids, keyed by id
func (s *Store) ProfilesByID(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id IN ("+placeholders(len(ids), 1)+")", args...)
	if err != nil {
		return nil, unavailable("fetch profiles by id", err)
	}
	defer rows.Close()

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}
