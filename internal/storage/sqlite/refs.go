package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/understudybot/understudy/internal/core"
)

// BumpReference increments the counter for (namespace, item), inserting it at
// 1 if absent, and returns the updated counter with any cached title.
func (s *Store) BumpReference(ctx context.Context, namespace, item string) (core.Reference, bool) {
	var ref core.Reference
	ok := s.run(ctx, "bumpReference", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := bumpInTx(ctx, tx, namespace, item, time.Now().UTC()); err != nil {
			return err
		}

		var title sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT count, last_referenced, title FROM refs WHERE namespace = ? AND item = ?`,
			namespace, item).Scan(&ref.Count, &ref.LastReferenced, &title)
		if err != nil {
			return fmt.Errorf("failed to read reference counter: %w", err)
		}
		ref.Namespace = namespace
		ref.Item = item
		ref.Title = title.String

		return tx.Commit()
	})
	return ref, ok
}

// SetTitle caches a fetched title for (namespace, item).
func (s *Store) SetTitle(ctx context.Context, namespace, item, title string) {
	s.run(ctx, "setTitle", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE refs SET title = ? WHERE namespace = ? AND item = ?`,
			title, namespace, item)
		if err != nil {
			return fmt.Errorf("failed to set title: %w", err)
		}
		return nil
	})
}

// Mood derives the agent's mood from two factoid reference counters.
func (s *Store) Mood(ctx context.Context, positiveMarker, negativeMarker string) int64 {
	var mood int64
	s.run(ctx, "mood", func(db *sql.DB) error {
		query := `SELECT
			COALESCE((SELECT count FROM refs WHERE namespace = ? AND item = ?), 0) -
			COALESCE((SELECT count FROM refs WHERE namespace = ? AND item = ?), 0)`
		err := db.QueryRowContext(ctx, query,
			core.NamespaceFactoid, positiveMarker,
			core.NamespaceFactoid, negativeMarker).Scan(&mood)
		if err != nil {
			return fmt.Errorf("failed to compute mood: %w", err)
		}
		return nil
	})
	return mood
}

func bumpInTx(ctx context.Context, tx *sql.Tx, namespace, item string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO refs (namespace, item, count, last_referenced) VALUES (?, ?, 1, ?)
			ON CONFLICT(namespace, item) DO UPDATE SET
				count = count + 1,
				last_referenced = excluded.last_referenced`,
		namespace, item, now)
	if err != nil {
		return fmt.Errorf("failed to bump reference counter: %w", err)
	}
	return nil
}
