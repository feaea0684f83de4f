package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/understudybot/understudy/internal/core"
)

// RecordSeen upserts the last-activity record for a nick: insert if absent,
// otherwise the new channel, timestamp and message win.
func (s *Store) RecordSeen(ctx context.Context, nick, channel, message string) {
	s.run(ctx, "recordSeen", func(db *sql.DB) error {
		query := `INSERT INTO seen (nick, channel, timestamp, message) VALUES (?, ?, ?, ?)
			ON CONFLICT(nick) DO UPDATE SET
				channel = excluded.channel,
				timestamp = excluded.timestamp,
				message = excluded.message`
		_, err := db.ExecContext(ctx, query, nick, channel, time.Now().UTC(), message)
		if err != nil {
			return fmt.Errorf("failed to upsert seen record: %w", err)
		}
		return nil
	})
}

// LookupSeen matches nicks against pattern, where * is an any-substring
// wildcard, and returns the 3 most recent records, newest first.
func (s *Store) LookupSeen(ctx context.Context, pattern string) []core.SeenRecord {
	like := strings.ReplaceAll(pattern, "*", "%")

	var records []core.SeenRecord
	s.run(ctx, "lookupSeen", func(db *sql.DB) error {
		query := `SELECT nick, channel, timestamp, message FROM seen
			WHERE nick LIKE ? ORDER BY timestamp DESC LIMIT 3`
		rows, err := db.QueryContext(ctx, query, like)
		if err != nil {
			return fmt.Errorf("failed to query seen records: %w", err)
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			var r core.SeenRecord
			if err := rows.Scan(&r.Nick, &r.Channel, &r.Timestamp, &r.Message); err != nil {
				return fmt.Errorf("failed to scan seen record: %w", err)
			}
			records = append(records, r)
		}
		return rows.Err()
	})
	return records
}
