// Package repository provides data access for the run history ledger.
package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/xtreamscout/xtreamscout/internal/models"
)

// RunRepository persists acquisition runs.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record.
func (r *RunRepository) Create(ctx context.Context, run *models.AcquisitionRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// Complete marks a run finished with the given status and counters.
func (r *RunRepository) Complete(ctx context.Context, run *models.AcquisitionRun, status string, runErr error) error {
	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("completing run: %w", err)
	}
	return nil
}

// GetByID fetches a run by its ULID.
func (r *RunRepository) GetByID(ctx context.Context, id models.ULID) (*models.AcquisitionRun, error) {
	var run models.AcquisitionRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", id, err)
	}
	return &run, nil
}

// ListByServer returns the most recent runs for a server, newest first.
// limit <= 0 returns all runs.
func (r *RunRepository) ListByServer(ctx context.Context, serverKey string, limit int) ([]models.AcquisitionRun, error) {
	query := r.db.WithContext(ctx).
		Where("server_key = ?", serverKey).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.AcquisitionRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
