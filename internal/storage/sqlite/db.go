package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/understudybot/understudy/pkg/log"
	"github.com/understudybot/understudy/pkg/retry"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	// Initial connection establishment: 5 attempts, fixed delay, a final
	// failure is fatal to startup.
	connectAttempts = 5
	connectDelay    = 30 * time.Second
)

// Store is the sqlite-backed knowledge store. It implements core.Store and
// owns the retry/reconnect policy for every operation; see runner.go.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open connects to the database at dbPath, retrying with a fixed delay, and
// runs pending migrations. The caller owns Close.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	var db *sql.DB
	r := retry.NewRetrier(retry.NewFixedDelayConfig(connectAttempts, connectDelay))
	err := r.Do(ctx, func() error {
		var cerr error
		db, cerr = connect(ctx, dbPath)
		if cerr != nil {
			log.FromCtx(ctx).Warn().Err(cerr).Msg("database connection failed, will retry")
		}
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func connect(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log.NewGooseLoggerFromCtx(ctx))

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}
