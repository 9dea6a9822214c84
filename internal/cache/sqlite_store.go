package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
	name TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_name TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	status INTEGER NOT NULL,
	header BLOB,
	body BLOB,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (cache_name, method, url)
);`

// SQLiteRegistry 将全部缓存仓保存在单个 SQLite 文件中。
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// NewSQLiteRegistry 打开（必要时创建）dbPath 指向的数据库并初始化表结构。
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache at %q: %w", dbPath, err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache tables: %w", err)
	}
	return &SQLiteRegistry{db: db, path: dbPath}, nil
}

// Close 释放数据库连接。
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

func (r *SQLiteRegistry) Open(ctx context.Context, name string) (Store, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO caches (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("create cache %s: %w", name, err)
	}
	return &sqliteStore{db: r.db, name: name}, nil
}

func (r *SQLiteRegistry) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SQLiteRegistry) Has(ctx context.Context, name string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM caches WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SQLiteRegistry) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_name = ?`, name); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

type sqliteStore struct {
	db   *sql.DB
	name string
}

func (s *sqliteStore) Name() string {
	return s.name
}

func (s *sqliteStore) Get(ctx context.Context, key Key) (Response, error) {
	var (
		status int
		header []byte
		body   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, header, body FROM cache_entries WHERE cache_name = ? AND method = ? AND url = ?`,
		s.name, key.Method, key.URL).Scan(&status, &header, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, ErrNotFound
		}
		return Response{}, err
	}

	resp := Response{Status: status, Body: body}
	if len(header) > 0 {
		var h http.Header
		if err := json.Unmarshal(header, &h); err != nil {
			return Response{}, fmt.Errorf("decode cached header: %w", err)
		}
		resp.Header = h
	}
	if resp.Body == nil {
		resp.Body = []byte{}
	}
	return resp, nil
}

func (s *sqliteStore) Put(ctx context.Context, key Key, resp Response) error {
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return err
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}

	// 仅当缓存仓仍然存在时才写入，已删除的旧版本不会被复活。
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_name, method, url, status, header, body, stored_at)
		SELECT ?, ?, ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM caches WHERE name = ?)
		ON CONFLICT (cache_name, method, url) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		s.name, key.Method, key.URL, resp.Status, header, body, time.Now().UTC().UnixNano(), s.name)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("cache %s: %w", s.name, ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Keys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT method, url FROM cache_entries WHERE cache_name = ? ORDER BY url, method`, s.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.Method, &key.URL); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
