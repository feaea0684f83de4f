package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/understudybot/understudy/internal/core"
)

// SetFactoid stores a new value for item. With replace set it first deletes
// all current values and logs a forget event; a plain set appends. Returns
// false with no mutation when any record for the item is locked.
func (s *Store) SetFactoid(ctx context.Context, author, item string, are bool, value string, replace bool) bool {
	stored := false
	ok := s.run(ctx, "setFactoid", func(db *sql.DB) error {
		stored = false
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		locked, err := itemLocked(ctx, tx, item)
		if err != nil {
			return err
		}
		if locked {
			return nil
		}

		now := time.Now().UTC()
		if replace {
			if _, err := forgetInTx(ctx, tx, item, author, now); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO factoids (item, are, value, nick, dateset) VALUES (?, ?, ?, ?, ?)`,
			item, are, value, author, now)
		if err != nil {
			return fmt.Errorf("failed to insert factoid: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO factoid_history (item, value, nick, dateset) VALUES (?, ?, ?, ?)`,
			item, value, author, now)
		if err != nil {
			return fmt.Errorf("failed to insert factoid history: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		stored = true
		return nil
	})
	return ok && stored
}

// ForgetFactoid deletes all active values for item and logs exactly one
// forget event. Returns false when the item is locked or nothing existed.
func (s *Store) ForgetFactoid(ctx context.Context, item, author string) bool {
	forgotten := false
	ok := s.run(ctx, "forgetFactoid", func(db *sql.DB) error {
		forgotten = false
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		locked, err := itemLocked(ctx, tx, item)
		if err != nil {
			return err
		}
		if locked {
			return nil
		}

		deleted, err := forgetInTx(ctx, tx, item, author, time.Now().UTC())
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		forgotten = deleted
		return nil
	})
	return ok && forgotten
}

// GetFactoid returns all active values for item ordered by set time. A
// non-empty read bumps the item's reference counter in the same transaction;
// a miss never touches the counter.
func (s *Store) GetFactoid(ctx context.Context, item string) []core.Factoid {
	var facts []core.Factoid
	s.run(ctx, "getFactoid", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx,
			`SELECT id, item, are, value, nick, dateset, locked FROM factoids
				WHERE item = ? ORDER BY dateset ASC, id ASC`, item)
		if err != nil {
			return fmt.Errorf("failed to query factoids: %w", err)
		}

		facts = facts[:0]
		for rows.Next() {
			var f core.Factoid
			if err := rows.Scan(&f.ID, &f.Item, &f.Are, &f.Value, &f.Author, &f.SetAt, &f.Locked); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan factoid: %w", err)
			}
			facts = append(facts, f)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(facts) > 0 {
			if err := bumpInTx(ctx, tx, core.NamespaceFactoid, item, time.Now().UTC()); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	return facts
}

// FactoidInfo returns up to the 4 most recent audit entries for item, each
// left-joined with the item's current reference counter.
func (s *Store) FactoidInfo(ctx context.Context, item string) []core.HistoryEntry {
	var entries []core.HistoryEntry
	s.run(ctx, "factoidInfo", func(db *sql.DB) error {
		query := `SELECT h.item, h.value, h.nick, h.dateset, r.count, r.last_referenced
			FROM factoid_history h
			LEFT JOIN refs r ON r.namespace = ? AND r.item = h.item
			WHERE h.item = ?
			ORDER BY h.dateset DESC, h.id DESC
			LIMIT 4`
		rows, err := db.QueryContext(ctx, query, core.NamespaceFactoid, item)
		if err != nil {
			return fmt.Errorf("failed to query factoid history: %w", err)
		}
		defer rows.Close()

		entries = entries[:0]
		for rows.Next() {
			var e core.HistoryEntry
			var value sql.NullString
			var count sql.NullInt64
			var lastRef sql.NullTime
			if err := rows.Scan(&e.Item, &value, &e.Author, &e.At, &count, &lastRef); err != nil {
				return fmt.Errorf("failed to scan factoid history: %w", err)
			}
			e.Value = value.String
			e.Deleted = !value.Valid
			e.RefCount = count.Int64
			e.HasRefCount = count.Valid
			e.LastReferenced = lastRef.Time
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries
}

func itemLocked(ctx context.Context, tx *sql.Tx, item string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM factoids WHERE item = ? AND locked = 1 LIMIT 1`, item).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return true, nil
}

// forgetInTx deletes all values for item and, when anything was deleted,
// appends a single forget event (NULL value) to the history.
func forgetInTx(ctx context.Context, tx *sql.Tx, item, author string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM factoids WHERE item = ?`, item)
	if err != nil {
		return false, fmt.Errorf("failed to delete factoids: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO factoid_history (item, value, nick, dateset) VALUES (?, NULL, ?, ?)`,
		item, author, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert forget event: %w", err)
	}
	return true, nil
}
