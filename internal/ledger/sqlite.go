package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"workshop_notifier/migrations"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the full ledger from the database.
func (s *SQLiteStore) Load(ctx context.Context) (Ledger, error) {
	l := New()

	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_key, app_id, item_id FROM handled_items ORDER BY channel_key, app_id, item_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query handled items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var channelKey string
		var appID, itemID int64
		if err := rows.Scan(&channelKey, &appID, &itemID); err != nil {
			return nil, fmt.Errorf("scan handled item: %w", err)
		}
		l.Entry(channelKey, appID).Mark(itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handled items: %w", err)
	}

	names, err := s.db.QueryContext(ctx,
		`SELECT channel_key, app_id, name FROM app_names`,
	)
	if err != nil {
		return nil, fmt.Errorf("query app names: %w", err)
	}
	defer func() { _ = names.Close() }()

	for names.Next() {
		var channelKey, name string
		var appID int64
		if err := names.Scan(&channelKey, &appID, &name); err != nil {
			return nil, fmt.Errorf("scan app name: %w", err)
		}
		l.Entry(channelKey, appID).Name = name
	}
	if err := names.Err(); err != nil {
		return nil, fmt.Errorf("iterate app names: %w", err)
	}

	return l, nil
}

// Save replaces the persisted ledger in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, l Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM handled_items`); err != nil {
		return fmt.Errorf("clear handled items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM app_names`); err != nil {
		return fmt.Errorf("clear app names: %w", err)
	}

	for channelKey, state := range l {
		for appKey, e := range state {
			appID, err := strconv.ParseInt(appKey, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid app key %q: %w", appKey, err)
			}
			for _, itemID := range e.IDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO handled_items (channel_key, app_id, item_id) VALUES (?, ?, ?)`,
					channelKey, appID, itemID,
				); err != nil {
					return fmt.Errorf("insert handled item: %w", err)
				}
			}
			if e.Name != "" {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO app_names (channel_key, app_id, name) VALUES (?, ?, ?)`,
					channelKey, appID, e.Name,
				); err != nil {
					return fmt.Errorf("insert app name: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}
