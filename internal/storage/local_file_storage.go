package storage

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	//go:embed migrations
	migrationsFS embed.FS
)

// LocalFileStorage is an ObjectStore that keeps payloads on the local
// filesystem under a content-addressed layout rooted at dataDir and records
// the key -> payload mapping in SQLite. Payloads are addressed by their full
// SHA-256 hexadecimal hash, with the first two characters used as a
// subdirectory prefix, so identical uploads under different keys share one
// file on disk.
type LocalFileStorage struct {
	dataDir string
	db      *sql.DB

	// mu serializes writers so payload garbage collection never races a
	// concurrent Put of the same content. Readers hold it shared across the
	// metadata lookup and the payload read.
	mu sync.RWMutex
}

// initSchema applies all SQL files in the embedded migrations in
// lexicographical order.
func initSchema(ctx context.Context, db *sql.DB) error {
	return fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(path)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Debug("Running migration", "path", path)
		_, execError := db.ExecContext(ctx, string(content))
		return execError
	})
}

// NewLocalFileStorage opens (creating if needed) the metadata database and
// payload directory under dataDir.
func NewLocalFileStorage(ctx context.Context, dataDir string) (*LocalFileStorage, error) {
	if dataDir == "" {
		return nil, errors.New("data dir must not be empty")
	}

	if err := os.MkdirAll(filepath.Join(dataDir, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.sqlite")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &LocalFileStorage{dataDir: dataDir, db: db}, nil
}

// Close closes the metadata database.
func (s *LocalFileStorage) Close() error {
	return s.db.Close()
}

// ObjectPath computes the full filesystem path for the payload identified by
// hashHex.
func ObjectPath(directory string, hashHex string) (string, error) {
	if len(hashHex) < 2 {
		return "", fmt.Errorf("invalid hash length: %d", len(hashHex))
	}
	return filepath.Join(directory, "objects", hashHex[:2], hashHex), nil
}

// WithTransaction runs a function within a database transaction.
func WithTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("error executing transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (s *LocalFileStorage) Head(ctx context.Context, key string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE key = ?`, key).Scan(&count); err != nil {
		return false, fmt.Errorf("lookup object %q: %w", key, err)
	}
	return count > 0, nil
}

func (s *LocalFileStorage) Get(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		hashHex     string
		size        int64
		contentType sql.NullString
		modifiedAt  time.Time
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT hash, size, content_type, modified_at FROM objects WHERE key = ?`,
		key,
	).Scan(&hashHex, &size, &contentType, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup object %q: %w", key, err)
	}

	objPath, err := ObjectPath(s.dataDir, hashHex)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(objPath)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}

	if size != int64(len(data)) {
		return nil, fmt.Errorf("object %q size mismatch: expected %d, got %d", key, size, len(data))
	}

	return &Object{
		Key:         key,
		Data:        data,
		ContentType: contentType.String,
		Size:        size,
		ModifiedAt:  modifiedAt,
	}, nil
}

func (s *LocalFileStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath, hashHex, size, err := WriteTempFile(filepath.Join(s.dataDir, "tmp"), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write temp payload: %w", err)
	}
	defer os.Remove(tempPath)

	objPath, err := ObjectPath(s.dataDir, hashHex)
	if err != nil {
		return err
	}

	// An identical payload may already be on disk under another key.
	if _, err := os.Stat(objPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
			return err
		}
		if err := MoveFile(tempPath, objPath); err != nil {
			return fmt.Errorf("store payload: %w", err)
		}
	}

	var previous sql.NullString
	now := time.Now().UTC()
	if err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT hash FROM objects WHERE key = ?`, key).Scan(&previous)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO objects(key, hash, size, content_type, created_at, modified_at)
			 VALUES(?, ?, ?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET
			   hash = excluded.hash,
			   size = excluded.size,
			   content_type = excluded.content_type,
			   modified_at = excluded.modified_at`,
			key, hashHex, size, contentType, now, now,
		)
		return err
	}); err != nil {
		return fmt.Errorf("record object %q: %w", key, err)
	}

	if previous.Valid && previous.String != hashHex {
		s.collectPayload(ctx, previous.String)
	}

	return nil
}

func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hashHex string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM objects WHERE key = ?`, key).Scan(&hashHex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup object %q: %w", key, err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}

	s.collectPayload(ctx, hashHex)
	return nil
}

// collectPayload removes the payload file for hashHex once no key refers to
// it any more. Failures are logged and otherwise ignored; a leaked payload
// is harmless.
func (s *LocalFileStorage) collectPayload(ctx context.Context, hashHex string) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE hash = ?`, hashHex).Scan(&count); err != nil {
		slog.Warn("Count payload references", "hash", hashHex, "err", err)
		return
	}
	if count > 0 {
		return
	}

	objPath, err := ObjectPath(s.dataDir, hashHex)
	if err != nil {
		return
	}
	if err := os.Remove(objPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Remove unreferenced payload", "path", objPath, "err", err)
		return
	}
	removeEmptyParent(objPath)
}
