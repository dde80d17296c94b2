package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"quarter_metrics/pkg/models"
)

// RunRepo persists completed pipeline runs and live progress snapshots.
type RunRepo struct{}

// NewRunRepo creates a new repository instance.
func NewRunRepo() *RunRepo {
	return &RunRepo{}
}

// SaveRun persists the full run result as one JSONB blob keyed by run ID.
//
// Schema assumption:
// CREATE TABLE IF NOT EXISTS pipeline_runs (
//   run_id TEXT PRIMARY KEY,
//   result_json JSONB,
//   created_at TIMESTAMPTZ
// );
func (r *RunRepo) SaveRun(ctx context.Context, result *models.RunResult) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (run_id, result_json, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id)
		DO UPDATE SET result_json = EXCLUDED.result_json, created_at = EXCLUDED.created_at`

	if _, err := pool.Exec(ctx, query, result.RunID, jsonData, time.Now()); err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}
	return nil
}

// GetRun loads a stored run result by ID.
func (r *RunRepo) GetRun(ctx context.Context, runID string) (*models.RunResult, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	query := `SELECT result_json FROM pipeline_runs WHERE run_id = $1`
	if err := pool.QueryRow(ctx, query, runID).Scan(&jsonData); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result models.RunResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

// ProgressWriter upserts each progress snapshot for a job so another
// process can poll the run state. Write errors are logged, never fatal: a
// storage hiccup must not kill a running acquisition.
//
// Schema assumption:
// CREATE TABLE IF NOT EXISTS pipeline_progress (
//   job_id TEXT PRIMARY KEY,
//   progress_json JSONB,
//   updated_at TIMESTAMPTZ
// );
type ProgressWriter struct {
	JobID string
}

func (w *ProgressWriter) Update(progress []models.CompanyProgress, logLines []string) {
	pool := GetPool()
	if pool == nil {
		return
	}

	snapshot := struct {
		Progress []models.CompanyProgress `json:"progress"`
		LogLines []string                 `json:"log_lines"`
	}{Progress: progress, LogLines: logLines}

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("[Store] failed to marshal progress for job %s: %v", w.JobID, err)
		return
	}

	query := `
		INSERT INTO pipeline_progress (job_id, progress_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id)
		DO UPDATE SET progress_json = EXCLUDED.progress_json, updated_at = EXCLUDED.updated_at`

	if _, err := pool.Exec(context.Background(), query, w.JobID, jsonData, time.Now()); err != nil {
		log.Printf("[Store] failed to save progress for job %s: %v", w.JobID, err)
	}
}
