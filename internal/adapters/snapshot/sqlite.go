// Package snapshot хранит снимки юнитов в локальной базе sqlite.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"activity-collector/internal/domain"
	"activity-collector/internal/infra/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	unit_id    TEXT PRIMARY KEY,
	fetched_at TEXT NOT NULL,
	body       BLOB NOT NULL
)`

// SQLite реализует domain.SnapshotStore поверх одного файла на диске.
type SQLite struct {
	db *sql.DB
}

var _ domain.SnapshotStore = (*SQLite)(nil)

// NewSQLite открывает (при необходимости создавая) файл базы и схему.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("каталог снимков: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("открытие базы снимков: %w", err)
	}
	// Один писатель на ключ; параллельных соединений не требуется.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("создание схемы: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close закрывает базу.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get возвращает снимок юнита либо domain.ErrSnapshotNotFound.
func (s *SQLite) Get(ctx context.Context, unitID string) (domain.Snapshot, error) {
	start := time.Now()
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE unit_id = ?`, unitID).Scan(&body)
	metrics.ObserveNetworkRequest("sqlite", "snapshot_get", "snapshots", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("чтение снимка %s: %w", unitID, err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("разбор снимка %s: %w", unitID, err)
	}
	return snapshot, nil
}

// Put замещает снимок юнита целиком (last-writer-wins).
func (s *SQLite) Put(ctx context.Context, snapshot domain.Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("сериализация снимка %s: %w", snapshot.UnitID, err)
	}
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (unit_id, fetched_at, body)
VALUES (?, ?, ?)
ON CONFLICT(unit_id) DO UPDATE SET fetched_at = excluded.fetched_at, body = excluded.body`,
		snapshot.UnitID, snapshot.FetchedAt.UTC().Format(time.RFC3339Nano), body)
	metrics.ObserveNetworkRequest("sqlite", "snapshot_put", "snapshots", start, err)
	if err != nil {
		return fmt.Errorf("запись снимка %s: %w", snapshot.UnitID, err)
	}
	return nil
}
