package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

const tableName = "roundup_cache"

// SQLStore keeps cache entries in a single table. Times are unix nanoseconds
// so both dialects store them the same way.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// Open connects with the driver named by dialect and makes sure the table exists.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer avoids SQLITE_BUSY on concurrent upserts
		db.SetMaxOpenConns(1)
	}
	store := NewSQLStore(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	var ddl string
	switch s.dialect {
	case MySQL:
		ddl = `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			id CHAR(40) NOT NULL PRIMARY KEY,
			value MEDIUMTEXT,
			create_time BIGINT NOT NULL,
			mod_time BIGINT NOT NULL,
			access_time BIGINT NOT NULL
		) ENGINE = InnoDB`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			id CHAR(40) NOT NULL PRIMARY KEY,
			value TEXT,
			create_time INTEGER NOT NULL,
			mod_time INTEGER NOT NULL,
			access_time INTEGER NOT NULL
		)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", tableName, err)
	}
	return nil
}

func (s *SQLStore) Has(ctx context.Context, key Key) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+tableName+` WHERE id = ?`, string(key)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache has %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+tableName+` WHERE id = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := s.Touch(ctx, key); err != nil {
		return "", false, err
	}
	return value.String, true, nil
}

// Set inserts or overwrites the entry and returns the key it was stored under.
func (s *SQLStore) Set(ctx context.Context, key Key, value string) (string, error) {
	now := s.now().UnixNano()

	var stmt string
	switch s.dialect {
	case MySQL:
		stmt = `INSERT INTO ` + tableName + ` (id, value, create_time, mod_time, access_time)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), mod_time = VALUES(mod_time), access_time = VALUES(access_time)`
	default:
		stmt = `INSERT INTO ` + tableName + ` (id, value, create_time, mod_time, access_time)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET value = excluded.value, mod_time = excluded.mod_time, access_time = excluded.access_time`
	}

	if _, err := s.db.ExecContext(ctx, stmt, string(key), value, now, now, now); err != nil {
		return "", fmt.Errorf("cache set %s: %w", key, err)
	}
	return string(key), nil
}

func (s *SQLStore) Remove(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE id = ?`, string(key)); err != nil {
		return fmt.Errorf("cache remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Touch(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx, `UPDATE `+tableName+` SET access_time = ? WHERE id = ?`, s.now().UnixNano(), string(key))
	if err != nil {
		return fmt.Errorf("cache touch %s: %w", key, err)
	}
	return nil
}

// Entry loads the full row including timestamps. It does not touch the entry.
func (s *SQLStore) Entry(ctx context.Context, key Key) (*Entry, error) {
	var (
		value                     sql.NullString
		created, modified, access int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, create_time, mod_time, access_time FROM `+tableName+` WHERE id = ?`, string(key),
	).Scan(&value, &created, &modified, &access)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return &Entry{
		Key:      key,
		Value:    value.String,
		Created:  time.Unix(0, created),
		Modified: time.Unix(0, modified),
		Accessed: time.Unix(0, access),
	}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// OpenStore builds the Store named by driver. The returned close func is
// never nil.
func OpenStore(ctx context.Context, driver, dsn string) (Store, func() error, error) {
	switch Dialect(driver) {
	case SQLite, MySQL:
		s, err := Open(ctx, Dialect(driver), dsn)
		if err != nil {
			return nil, func() error { return nil }, err
		}
		return s, s.Close, nil
	case "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	}
	return nil, func() error { return nil }, fmt.Errorf("unknown cache driver %q", driver)
}
