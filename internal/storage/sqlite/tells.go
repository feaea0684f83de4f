package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/understudybot/understudy/internal/core"
)

// EnqueueTell appends a deferred message for recipient.
func (s *Store) EnqueueTell(ctx context.Context, author, recipient, message string, companionRelevant bool) bool {
	return s.run(ctx, "enqueueTell", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO tells (author, recipient, timestamp, message, companion_relevant)
				VALUES (?, ?, ?, ?, ?)`,
			author, recipient, time.Now().UTC(), message, companionRelevant)
		if err != nil {
			return fmt.Errorf("failed to insert tell: %w", err)
		}
		return nil
	})
}

// DrainTells returns all pending tells for recipient in FIFO order and
// deletes them in the same transaction: a batch is delivered at most once.
func (s *Store) DrainTells(ctx context.Context, recipient string) []core.Tell {
	var tells []core.Tell
	s.run(ctx, "drainTells", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx,
			`SELECT author, recipient, timestamp, message, companion_relevant FROM tells
				WHERE recipient = ? ORDER BY timestamp ASC, id ASC`, recipient)
		if err != nil {
			return fmt.Errorf("failed to query tells: %w", err)
		}

		tells = tells[:0]
		for rows.Next() {
			var t core.Tell
			if err := rows.Scan(&t.Author, &t.Recipient, &t.Timestamp, &t.Message, &t.CompanionRelevant); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan tell: %w", err)
			}
			tells = append(tells, t)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(tells) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tells WHERE recipient = ?`, recipient); err != nil {
				return fmt.Errorf("failed to delete delivered tells: %w", err)
			}
		}

		return tx.Commit()
	})
	return tells
}
