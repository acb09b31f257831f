package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// table layout per bucket: feeds are keyed by integer fid, conversations by hash
var sqliteTables = map[Bucket]struct {
	keyColumn string
	keyType   string
}{
	BucketCasts:         {"fid", "INTEGER"},
	BucketReplies:       {"fid", "INTEGER"},
	BucketConversations: {"hash", "TEXT"},
}

// SQLite stores cache entries in one table per bucket
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the cache database at path
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite cache: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite cache: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// Writers are serialized through a single connection
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	for _, bucket := range Buckets {
		t := sqliteTables[bucket]
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s %s PRIMARY KEY, data TEXT)", bucket, t.keyColumn, t.keyType)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite cache: create %s: %w", bucket, err)
		}
	}
	return nil
}

// keyArg resolves the key column for bucket and converts key to the column type
func keyArg(bucket Bucket, key string) (string, interface{}, error) {
	t, ok := sqliteTables[bucket]
	if !ok {
		return "", nil, fmt.Errorf("unknown cache bucket %q", bucket)
	}
	if t.keyType == "INTEGER" {
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("cache bucket %s needs an integer key, got %q", bucket, key)
		}
		return t.keyColumn, n, nil
	}
	return t.keyColumn, key, nil
}

// Get retrieves a value from cache
func (s *SQLite) Get(ctx context.Context, bucket Bucket, key string) ([]byte, bool, error) {
	col, arg, err := keyArg(bucket, key)
	if err != nil {
		return nil, false, err
	}
	var data string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", bucket, col), arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

// Put inserts or replaces a value
func (s *SQLite) Put(ctx context.Context, bucket Bucket, key string, value []byte) error {
	col, arg, err := keyArg(bucket, key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, data) VALUES (?, ?)", bucket, col),
		arg, string(value))
	return err
}

// Close closes the database
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
