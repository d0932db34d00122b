package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/palette/internal/models"
)

// AddBannedWord inserts a banned word; word uniqueness is case-insensitive
// via the column's NOCASE collation.
func (s *Store) AddBannedWord(ctx context.Context, phrase string, mode models.MatchMode, addedBy string) (*models.BannedWord, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO banned_words (id, word, partial, added_by, added_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, phrase, mode == models.MatchPartial, addedBy, now)
	if err != nil {
		return nil, fmt.Errorf("inserting banned word: %w", err)
	}
	return &models.BannedWord{
		ID: id, Phrase: phrase, Mode: mode, AddedBy: addedBy, CreatedAtMS: now,
	}, nil
}

// RemoveBannedWord deletes a banned word by case-insensitive phrase match.
func (s *Store) RemoveBannedWord(ctx context.Context, phrase string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM banned_words WHERE word = ? COLLATE NOCASE`, phrase)
	return checkAffected(res, err)
}

// ListBannedWords returns all banned words, in insertion order.
func (s *Store) ListBannedWords(ctx context.Context) ([]models.BannedWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, word, partial, added_by, added_at FROM banned_words ORDER BY added_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing banned words: %w", err)
	}
	defer rows.Close()

	var out []models.BannedWord
	for rows.Next() {
		var w models.BannedWord
		var partial bool
		if err := rows.Scan(&w.ID, &w.Phrase, &partial, &w.AddedBy, &w.CreatedAtMS); err != nil {
			return nil, fmt.Errorf("scanning banned word row: %w", err)
		}
		if partial {
			w.Mode = models.MatchPartial
		} else {
			w.Mode = models.MatchWhole
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
