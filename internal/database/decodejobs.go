package database

import (
	"context"
	"fmt"

	"github.com/jmylchreest/dvrtsdecode/internal/models"
)

// Migrate runs auto-migration for all decode-job history models.
func (db *DB) Migrate() error {
	if err := db.DB.AutoMigrate(&models.DecodeJob{}); err != nil {
		return fmt.Errorf("migrating decode_jobs: %w", err)
	}
	return nil
}

// JobRepository persists DecodeJob records.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a repository bound to db.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new decode job record.
func (r *JobRepository) Create(ctx context.Context, job *models.DecodeJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validating decode job: %w", err)
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// Update persists changes to an existing decode job record.
func (r *JobRepository) Update(ctx context.Context, job *models.DecodeJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// Get fetches a decode job record by ID.
func (r *JobRepository) Get(ctx context.Context, id models.ULID) (*models.DecodeJob, error) {
	var job models.DecodeJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id.String()).Error; err != nil {
		return nil, fmt.Errorf("fetching decode job %s: %w", id, err)
	}
	return &job, nil
}

// List returns the most recent decode job records, newest first, bounded by limit.
func (r *JobRepository) List(ctx context.Context, limit int) ([]*models.DecodeJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []*models.DecodeJob
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing decode jobs: %w", err)
	}
	return jobs, nil
}
