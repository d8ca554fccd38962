// Package history persists finished conversions in a DuckDB file so the
// dashboard can show totals and recent activity across restarts.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/convertdesk/backend/internal/models"
)

// Stats aggregates the stored records for the dashboard.
type Stats struct {
	TotalConversions    int   `json:"totalConversions"`
	TotalFilesProcessed int   `json:"totalFilesProcessed"`
	Succeeded           int   `json:"succeeded"`
	Failed              int   `json:"failed"`
	Cancelled           int   `json:"cancelled"`
	UptimeSeconds       int64 `json:"uptimeSeconds"`
}

// Store is a DuckDB-backed conversion log. It implements request.Recorder.
type Store struct {
	db        *sql.DB
	dbPath    string
	startedAt time.Time
	mu        sync.Mutex
}

// NewStore opens (or creates) the history database in the given directory.
func NewStore(dir string, threads int) (*Store, error) {
	if threads <= 0 {
		threads = 2
	}
	dbPath := filepath.Join(dir, "history.duckdb")

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversions (
			id VARCHAR PRIMARY KEY,
			widget_id VARCHAR,
			tool_id VARCHAR,
			tool_name VARCHAR,
			status VARCHAR,
			file_count INTEGER,
			input_bytes BIGINT,
			artifact_name VARCHAR,
			artifact_bytes BIGINT,
			error VARCHAR,
			duration_ms BIGINT,
			created_at TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conversions table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, startedAt: time.Now()}, nil
}

// Record inserts one finished conversion.
func (s *Store) Record(rec models.ConversionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO conversions
			(id, widget_id, tool_id, tool_name, status, file_count, input_bytes,
			 artifact_name, artifact_bytes, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WidgetID, rec.ToolID, rec.ToolName, string(rec.Status),
		rec.FileCount, rec.InputBytes, rec.ArtifactName, rec.ArtifactBytes,
		rec.Error, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversion record: %w", err)
	}
	return nil
}

// Recent returns the newest records, newest first.
func (s *Store) Recent(limit int) ([]models.ConversionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, widget_id, tool_id, tool_name, status, file_count, input_bytes,
		       artifact_name, artifact_bytes, error, duration_ms, created_at
		FROM conversions
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.ConversionRecord, 0, limit)
	for rows.Next() {
		var rec models.ConversionRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.WidgetID, &rec.ToolID, &rec.ToolName,
			&status, &rec.FileCount, &rec.InputBytes, &rec.ArtifactName,
			&rec.ArtifactBytes, &rec.Error, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = models.RequestStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates totals across all stored conversions.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{UptimeSeconds: int64(time.Since(s.startedAt).Seconds())}

	row := s.db.QueryRow(`
		SELECT
			count(*),
			coalesce(sum(file_count), 0),
			coalesce(sum(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0)
		FROM conversions`)
	if err := row.Scan(&stats.TotalConversions, &stats.TotalFilesProcessed,
		&stats.Succeeded, &stats.Failed, &stats.Cancelled); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
