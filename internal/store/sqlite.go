// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides allocation/performance persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS allocations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		score REAL NOT NULL,
		strategy TEXT NOT NULL,
		estimated_response_ns INTEGER NOT NULL,
		estimated_cost REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_agent ON allocations(agent_id);

	CREATE TABLE IF NOT EXISTS performance (
		agent_id TEXT NOT NULL,
		capability_id TEXT NOT NULL,
		total_tasks INTEGER NOT NULL,
		successful_tasks INTEGER NOT NULL,
		failed_tasks INTEGER NOT NULL,
		total_execution_ns INTEGER NOT NULL,
		average_response_ns INTEGER NOT NULL,
		success_rate REAL NOT NULL,
		last_used TIMESTAMP NOT NULL,
		PRIMARY KEY (agent_id, capability_id)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// SaveAllocation appends one allocation to the audit trail.
func (s *SQLiteStore) SaveAllocation(ctx context.Context, a *Allocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocations (agent_id, task_id, score, strategy, estimated_response_ns, estimated_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.AgentID, a.TaskID, a.Score, a.Strategy,
		int64(a.EstimatedResponseTime), a.EstimatedCost, a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("saving allocation: %w", err)
	}
	return nil
}

// ListAllocations returns the most recent limit allocations,
// most-recent-last.
func (s *SQLiteStore) ListAllocations(ctx context.Context, limit int) ([]*Allocation, error) {
	query := `
		SELECT agent_id, task_id, score, strategy, estimated_response_ns, estimated_cost, created_at
		FROM allocations ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing allocations: %w", err)
	}
	defer rows.Close()

	var out []*Allocation
	for rows.Next() {
		var a Allocation
		var respNs int64
		if err := rows.Scan(&a.AgentID, &a.TaskID, &a.Score, &a.Strategy, &respNs, &a.EstimatedCost, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning allocation: %w", err)
		}
		a.EstimatedResponseTime = time.Duration(respNs)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating allocations: %w", err)
	}

	// Query returns newest-first; callers want most-recent-last.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SavePerformance upserts a performance snapshot for a pair.
func (s *SQLiteStore) SavePerformance(ctx context.Context, p *PerformanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance (agent_id, capability_id, total_tasks, successful_tasks, failed_tasks, total_execution_ns, average_response_ns, success_rate, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, capability_id) DO UPDATE SET
			total_tasks = excluded.total_tasks,
			successful_tasks = excluded.successful_tasks,
			failed_tasks = excluded.failed_tasks,
			total_execution_ns = excluded.total_execution_ns,
			average_response_ns = excluded.average_response_ns,
			success_rate = excluded.success_rate,
			last_used = excluded.last_used`,
		p.AgentID, p.CapabilityID, p.TotalTasks, p.SuccessfulTasks, p.FailedTasks,
		int64(p.TotalExecutionTime), int64(p.AverageResponseTime), p.SuccessRate, p.LastUsed,
	)
	if err != nil {
		return fmt.Errorf("saving performance: %w", err)
	}
	return nil
}

// GetPerformance fetches the snapshot for one pair.
func (s *SQLiteStore) GetPerformance(ctx context.Context, agentID, capabilityID string) (*PerformanceRecord, error) {
	var p PerformanceRecord
	var totalNs, avgNs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_id, capability_id, total_tasks, successful_tasks, failed_tasks, total_execution_ns, average_response_ns, success_rate, last_used
		FROM performance WHERE agent_id = ? AND capability_id = ?`,
		agentID, capabilityID,
	).Scan(&p.AgentID, &p.CapabilityID, &p.TotalTasks, &p.SuccessfulTasks, &p.FailedTasks,
		&totalNs, &avgNs, &p.SuccessRate, &p.LastUsed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting performance: %w", err)
	}
	p.TotalExecutionTime = time.Duration(totalNs)
	p.AverageResponseTime = time.Duration(avgNs)
	return &p, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
