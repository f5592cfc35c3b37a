package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jmertens/storefront-media/internal/domain"
	"github.com/jmertens/storefront-media/internal/infra/logging"
)

// SQLiteRecordRepositoryConfig holds configuration for the SQLite record repository.
type SQLiteRecordRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/mediasvc.db"`
}

// SQLiteRecordRepository implements Repository using SQLite as the storage backend.
type SQLiteRecordRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteRecordRepository)(nil)

// SQLiteRecordRepositoryFactory creates a factory function that returns a new
// SQLiteRecordRepository. The factory function implements the RepositoryFactory type.
func SQLiteRecordRepositoryFactory(cfg SQLiteRecordRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteRecordRepository(cfg)
	}
}

// NewSQLiteRecordRepository creates a new SQLiteRecordRepository with the given
// configuration. It initializes the database connection and creates the schema
// if needed. Returns an error if database connection or initialization fails.
func NewSQLiteRecordRepository(cfg SQLiteRecordRepositoryConfig) (*SQLiteRecordRepository, error) {
	log := logging.GetLogger("repo.record.sqlite_record_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteRecordRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) (err error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS listing_images (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			owner      TEXT    NOT NULL,
			filename   TEXT    NOT NULL,
			path       TEXT    NOT NULL,
			position   INTEGER NOT NULL,
			alt_text   TEXT    NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			UNIQUE (owner, filename)
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Save implements Repository.Save using SQLite.
func (r *SQLiteRecordRepository) Save(ctx context.Context, rec domain.StoredImageRecord) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err = r.db.Exec(
		"INSERT INTO listing_images (owner, filename, path, position, alt_text, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.Owner,
		rec.Filename,
		rec.Path,
		rec.Position,
		rec.AltText,
		rec.CreatedAt,
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			switch liteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				fallthrough
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				err = errors.Join(domain.ErrImageAlreadyExists, err)
			default:
				break
			}
		}

		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// ListByOwner implements Repository.ListByOwner using SQLite.
func (r *SQLiteRecordRepository) ListByOwner(
	ctx context.Context,
	owner string,
) ([]domain.StoredImageRecord, error) {
	rows, err := r.db.Query(
		"SELECT owner, filename, path, position, alt_text, created_at FROM listing_images WHERE owner = ? ORDER BY position, id",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.StoredImageRecord

	for rows.Next() {
		var rec domain.StoredImageRecord
		if err := rows.Scan(&rec.Owner, &rec.Filename, &rec.Path, &rec.Position, &rec.AltText, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// UpdateMeta implements Repository.UpdateMeta using SQLite.
func (r *SQLiteRecordRepository) UpdateMeta(
	ctx context.Context,
	owner, filename string,
	position int,
	altText string,
) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.Exec(
		"UPDATE listing_images SET position = ?, alt_text = ? WHERE owner = ? AND filename = ?",
		position,
		altText,
		owner,
		filename,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrImageNotFound, owner, filename)
	}

	return nil
}

// Delete implements Repository.Delete using SQLite.
func (r *SQLiteRecordRepository) Delete(ctx context.Context, owner, filename string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.Exec(
		"DELETE FROM listing_images WHERE owner = ? AND filename = ?",
		owner,
		filename,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrImageNotFound, owner, filename)
	}

	return nil
}

// DeleteByOwner implements Repository.DeleteByOwner using SQLite.
func (r *SQLiteRecordRepository) DeleteByOwner(ctx context.Context, owner string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.Exec("DELETE FROM listing_images WHERE owner = ?", owner); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteRecordRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
