package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/registrar/internal/model"
)

// SQLiteStore keeps records in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func put(ctx context.Context, q interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, key string, value []byte, revision string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO records (key, value, revision, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, key, value, revision, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// LoadMode returns the stored mode.
func (s *SQLiteStore) LoadMode(ctx context.Context) (model.Mode, error) {
	data, err := s.get(ctx, s.db, keyMode)
	if err != nil {
		return model.Mode{}, err
	}
	return decodeMode(data)
}

// SaveMode replaces or deletes the stored mode.
func (s *SQLiteStore) SaveMode(ctx context.Context, mode *model.Mode) error {
	if mode == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, keyMode); err != nil {
			return fmt.Errorf("delete mode: %w", err)
		}
		return nil
	}
	data, err := encodeMode(*mode)
	if err != nil {
		return err
	}
	return put(ctx, s.db, keyMode, data, "")
}

// Load returns the stored state.
func (s *SQLiteStore) Load(ctx context.Context) (model.PersistedState, error) {
	data, err := s.get(ctx, s.db, keyState)
	if err != nil {
		return model.PersistedState{}, err
	}
	return decodeState(data)
}

// Update runs a read-modify-write of the state inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, mutate func(*model.PersistedState) error) (model.PersistedState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PersistedState{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.get(ctx, tx, keyState)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return model.PersistedState{}, err
	}

	state, data, err := applyUpdate(current, mutate)
	if err != nil {
		return model.PersistedState{}, err
	}
	if err := put(ctx, tx, keyState, data, state.Revision); err != nil {
		return model.PersistedState{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.PersistedState{}, fmt.Errorf("commit transaction: %w", err)
	}
	return state, nil
}

// Clear deletes the state record.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, keyState); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}
