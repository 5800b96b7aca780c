package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Alexander-D-Karpov/streamplayer/internal/config"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var (
	ErrNotFound = errors.New("resource not stored")
	ErrClosed   = errors.New("database is closed")
)

// Database persists fetched resources so later sessions skip the transport.
type Database struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	debug  bool
}

func NewDatabase(cfg *config.Config) (*Database, error) {
	return Open(cfg.Storage.DatabasePath, cfg.Storage.EnableWAL, cfg.Debug)
}

func Open(dbPath string, enableWAL, debug bool) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := openDatabase(dbPath, enableWAL, debug)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storage := &Database{
		db:    db,
		debug: debug,
	}

	if err := storage.runMigrations(); err != nil {
		if closeErr := storage.Close(); closeErr != nil {
			log.Printf("[STORE] Failed to close database after migration error: %v", closeErr)
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return storage, nil
}

func openDatabase(dbPath string, enableWAL, debug bool) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) && debug {
		log.Printf("[STORE] Creating new database at %s", dbPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA temp_store=memory",
		"PRAGMA cache_size=-16000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	}

	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				log.Printf("[STORE] Failed to close database after pragma error: %v", closeErr)
			}
			return nil, fmt.Errorf("execute pragma %s: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[STORE] Failed to close database after ping error: %v", closeErr)
		}
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func (d *Database) debugLog(operation string, err error, duration time.Duration) {
	if !d.debug || err == nil {
		return
	}

	log.Printf("[STORE] %s failed in %v: %v", operation, duration, err)
}

func (d *Database) checkClosed() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	return nil
}

// LoadResource returns the stored bytes for key or ErrNotFound.
func (d *Database) LoadResource(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	var data []byte
	err := d.db.QueryRowContext(ctx, `SELECT data FROM resources WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		d.debugLog("LoadResource", err, time.Since(start))
		return nil, fmt.Errorf("query resource %s: %w", key, err)
	}

	if _, err := d.db.ExecContext(ctx, `UPDATE resources SET accessed_at = ? WHERE key = ?`,
		time.Now().Unix(), key); err != nil {
		d.debugLog("LoadResource", err, time.Since(start))
	}

	return data, nil
}

func (d *Database) SaveResource(ctx context.Context, key string, data []byte) error {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return err
	}

	if data == nil {
		data = []byte{}
	}

	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO resources (key, data, size, fetched_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			fetched_at = excluded.fetched_at,
			accessed_at = excluded.accessed_at
	`, key, data, len(data), now, now)
	if err != nil {
		d.debugLog("SaveResource", err, time.Since(start))
		return fmt.Errorf("save resource %s: %w", key, err)
	}

	return nil
}

// DeleteResource removes key and reports whether it was stored.
func (d *Database) DeleteResource(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return false, err
	}

	res, err := d.db.ExecContext(ctx, `DELETE FROM resources WHERE key = ?`, key)
	if err != nil {
		d.debugLog("DeleteResource", err, time.Since(start))
		return false, fmt.Errorf("delete resource %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete resource %s: %w", key, err)
	}
	return n > 0, nil
}

func (d *Database) ListResources(ctx context.Context) ([]types.ResourceInfo, error) {
	return d.queryInfo(ctx, "ListResources",
		`SELECT key, size, fetched_at FROM resources ORDER BY key`)
}

// SearchResources returns stored keys containing query, case-insensitively.
func (d *Database) SearchResources(ctx context.Context, query string, limit int) ([]types.ResourceInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + strings.ToLower(query) + "%"
	return d.queryInfo(ctx, "SearchResources",
		`SELECT key, size, fetched_at FROM resources WHERE lower(key) LIKE ? ORDER BY key LIMIT ?`,
		pattern, limit)
}

func (d *Database) queryInfo(ctx context.Context, operation, query string, args ...interface{}) ([]types.ResourceInfo, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		d.debugLog(operation, err, time.Since(start))
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("[STORE] Failed to close rows: %v", closeErr)
		}
	}()

	var infos []types.ResourceInfo
	for rows.Next() {
		var info types.ResourceInfo
		var fetchedAt int64
		if err := rows.Scan(&info.Key, &info.Size, &fetchedAt); err != nil {
			d.debugLog(operation, err, time.Since(start))
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		info.FetchedAt = time.Unix(fetchedAt, 0)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		d.debugLog(operation, err, time.Since(start))
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return infos, nil
}

// TotalSize returns the number of stored bytes.
func (d *Database) TotalSize(ctx context.Context) (int64, error) {
	if err := d.checkClosed(); err != nil {
		return 0, err
	}

	var total int64
	if err := d.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM resources`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum resource sizes: %w", err)
	}
	return total, nil
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	if d.db != nil {
		if _, err := d.db.Exec("PRAGMA optimize"); err != nil && d.debug {
			log.Printf("[STORE] Failed to optimize database: %v", err)
		}
		return d.db.Close()
	}

	return nil
}
