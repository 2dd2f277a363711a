package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
) WITHOUT ROWID`

// Value codec header bytes.
const (
	codecRaw  byte = 0
	codecZstd byte = 1
)

var errCodec = errors.New("unknown value codec")

// SQLiteStore implements Store on a single sqlite table.
//
// sqlite keeps rows in fixed-size B-tree pages; values are zstd compressed
// before they reach a page. Reads and writes each run in an explicit
// transaction.
type SQLiteStore struct {
	db   *sql.DB
	path string

	minCompress int
	enc         *zstd.Encoder
	dec         *zstd.Decoder
}

// OpenSQLite opens or creates "<root>.sqlite".
func OpenSQLite(root string, cfg SQLiteConfig) (*SQLiteStore, error) {
	path := ArtifactPath(root, BackendSQLite)
	if err := ensureParent(path); err != nil {
		return nil, wrapErr(BackendSQLite, "open", path, err)
	}

	defaults := DefaultSQLiteConfig()
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaults.BusyTimeout
	}
	if cfg.MinCompressSize <= 0 {
		cfg.MinCompressSize = defaults.MinCompressSize
	}
	if cfg.CompressionLevel == "" {
		cfg.CompressionLevel = defaults.CompressionLevel
	}
	ok, level := zstd.EncoderLevelFromString(cfg.CompressionLevel)
	if !ok {
		return nil, &Error{
			Kind:    KindBackend,
			Backend: BackendSQLite,
			Op:      "open",
			Path:    path,
			Err:     fmt.Errorf("unknown compression level %q", cfg.CompressionLevel),
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)",
		filepath.Clean(path), cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapErr(BackendSQLite, "open", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, wrapErr(BackendSQLite, "open", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, wrapErr(BackendSQLite, "open", path, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		_ = db.Close()
		return nil, wrapErr(BackendSQLite, "open", path, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, wrapErr(BackendSQLite, "open", path, err)
	}

	return &SQLiteStore{
		db:          db,
		path:        path,
		minCompress: cfg.MinCompressSize,
		enc:         enc,
		dec:         dec,
	}, nil
}

// Insert upserts key inside a write transaction.
func (s *SQLiteStore) Insert(key string, value []byte) error {
	if err := checkKey(BackendSQLite, "insert", s.path, key); err != nil {
		return err
	}
	err := s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, s.encode(value))
		return err
	})
	return wrapErr(BackendSQLite, "insert", s.path, err)
}

// Get retrieves and decompresses the value for key.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var raw []byte
	err := s.read(func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, wrapErr(BackendSQLite, "get", s.path, err)
	}

	value, err := s.decode(raw)
	if err != nil {
		return nil, false, wrapErr(BackendSQLite, "get", s.path, err)
	}
	return value, true, nil
}

// Exists checks the primary key index only.
func (s *SQLiteStore) Exists(key string) (bool, error) {
	var one int
	err := s.read(func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, wrapErr(BackendSQLite, "exists", s.path, err)
	}
	return true, nil
}

// Remove deletes key inside a write transaction.
func (s *SQLiteStore) Remove(key string) error {
	err := s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key)
		return err
	})
	return wrapErr(BackendSQLite, "remove", s.path, err)
}

// List reads every row inside one read transaction.
func (s *SQLiteStore) List() ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.read(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT key, value FROM kv`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				key string
				raw []byte
			)
			if err := rows.Scan(&key, &raw); err != nil {
				return err
			}
			value, err := s.decode(raw)
			if err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			entries = append(entries, Entry{Key: key, Value: value})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapErr(BackendSQLite, "list", s.path, err)
	}
	return entries, nil
}

// Keys reads every key inside one read transaction.
func (s *SQLiteStore) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := s.read(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT key FROM kv`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapErr(BackendSQLite, "keys", s.path, err)
	}
	return keys, nil
}

// Path returns the sqlite database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database and the codec.
func (s *SQLiteStore) Close() error {
	s.dec.Close()
	encErr := s.enc.Close()
	if err := s.db.Close(); err != nil {
		return wrapErr(BackendSQLite, "close", s.path, err)
	}
	return wrapErr(BackendSQLite, "close", s.path, encErr)
}

// write runs fn in a transaction and commits it, rolling back on error.
func (s *SQLiteStore) write(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// read runs fn in a transaction so multi-row reads see one snapshot.
func (s *SQLiteStore) read(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(tx)
}

func (s *SQLiteStore) encode(value []byte) []byte {
	if len(value) < s.minCompress {
		out := make([]byte, 0, len(value)+1)
		out = append(out, codecRaw)
		return append(out, value...)
	}
	out := make([]byte, 1, len(value)/2+1)
	out[0] = codecZstd
	return s.enc.EncodeAll(value, out)
}

func (s *SQLiteStore) decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errCodec
	}
	switch raw[0] {
	case codecRaw:
		return append(make([]byte, 0, len(raw)-1), raw[1:]...), nil
	case codecZstd:
		return s.dec.DecodeAll(raw[1:], nil)
	default:
		return nil, fmt.Errorf("%w %d", errCodec, raw[0])
	}
}
