package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	dialectSQLite = "sqlite3"
	tableStorage  = "local_storage"
	colKey        = "key"
	colValue      = "value"
)

const schemaVersion = 1

// SQLite persists values in a single table of a SQLite database file.
type SQLite struct {
	db *sqlx.DB
	qb goqu.DialectWrapper
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, qb: goqu.Dialect(dialectSQLite)}, nil
}

func applyMigrations(db *sqlx.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current int
	_ = db.QueryRowx(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS local_storage (
            "key" TEXT PRIMARY KEY,
            "value" TEXT NOT NULL
        );`,
		fmt.Sprintf(`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', '%d');`, schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	query, args, err := s.qb.From(tableStorage).
		Select(colValue).
		Where(goqu.C(colKey).Eq(key)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", false, fmt.Errorf("build get query: %w", err)
	}

	var value string
	if err := s.db.Get(&value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value.
func (s *SQLite) Set(key, value string) error {
	update, updateArgs, err := s.qb.Update(tableStorage).
		Set(goqu.Record{colValue: value}).
		Where(goqu.C(colKey).Eq(key)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}
	insert, insertArgs, err := s.qb.Insert(tableStorage).
		Rows(goqu.Record{colKey: key, colValue: value}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin set: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(update, updateArgs...)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.Exec(insert, insertArgs...); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	query, args, err := s.qb.Delete(tableStorage).
		Where(goqu.C(colKey).Eq(key)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Clear() error {
	query, args, err := s.qb.Delete(tableStorage).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build clear query: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *SQLite) Keys() ([]string, error) {
	query, args, err := s.qb.From(tableStorage).
		Select(colKey).
		Order(goqu.C(colKey).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build keys query: %w", err)
	}
	keys := []string{}
	if err := s.db.Select(&keys, query, args...); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
