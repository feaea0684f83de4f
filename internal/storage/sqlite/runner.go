package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/mattn/go-sqlite3"
	"github.com/understudybot/understudy/pkg/log"
)

// opAttempts is the total attempts per store operation. A connection-level
// failure triggers a reconnect before the next attempt; any other failure has
// already been rolled back by the operation's deferred tx.Rollback.
const opAttempts = 3

// run executes op under the store's single-connection lock. It returns false
// once retries are exhausted; callers then hand their zero result to the
// dispatch layer, which cannot distinguish a miss from a storage failure.
func (s *Store) run(ctx context.Context, name string, op func(db *sql.DB) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.FromCtx(ctx)
	for attempt := 1; attempt <= opAttempts; attempt++ {
		if s.db == nil {
			if err := s.reconnect(ctx); err != nil {
				logger.Error().Err(err).Str("op", name).Msg("store reconnect failed")
				continue
			}
		}

		err := op(s.db)
		if err == nil {
			return true
		}

		logger.Warn().Err(err).Str("op", name).Int("attempt", attempt).Msg("store operation failed")
		if attempt == opAttempts {
			break
		}

		if isConnectionError(err) {
			if rerr := s.reconnect(ctx); rerr != nil {
				logger.Error().Err(rerr).Str("op", name).Msg("store reconnect failed")
			}
		}
	}

	logger.Error().Str("op", name).Msg("store retries exhausted")
	return false
}

func (s *Store) reconnect(ctx context.Context) error {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	db, err := connect(ctx, s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
	}
	return false
}
