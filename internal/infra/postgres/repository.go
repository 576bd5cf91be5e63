package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

var _ port.JobRepository = (*JobRepository)(nil)

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, user_id, source_type, video_key, source_url, document_key,
	archive_key, status, page_count, frames_sampled, file_size, video_duration,
	attempt, max_attempts, error_code, error_message, created_at, updated_at,
	completed_at`

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `INSERT INTO conversion_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, string(job.SourceType), job.VideoKey, job.SourceURL,
		job.DocumentKey, job.ArchiveKey, string(job.Status), job.PageCount,
		job.FramesSampled, job.FileSize, job.VideoDuration, job.Attempt,
		job.MaxAttempts, job.ErrorCode, job.ErrorMessage, job.CreatedAt,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE conversion_jobs SET
			status=$2, document_key=$3, archive_key=$4, page_count=$5,
			frames_sampled=$6, video_duration=$7, attempt=$8, error_code=$9,
			error_message=$10, updated_at=$11, completed_at=$12
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.DocumentKey, job.ArchiveKey,
		job.PageCount, job.FramesSampled, job.VideoDuration, job.Attempt,
		job.ErrorCode, job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, port.ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM conversion_jobs WHERE id=$1`

	job := &entity.Job{}
	var status, sourceType string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &sourceType, &job.VideoKey, &job.SourceURL,
		&job.DocumentKey, &job.ArchiveKey, &status, &job.PageCount,
		&job.FramesSampled, &job.FileSize, &job.VideoDuration, &job.Attempt,
		&job.MaxAttempts, &job.ErrorCode, &job.ErrorMessage, &job.CreatedAt,
		&job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find job %s: %w", id, port.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	job.SourceType = entity.SourceType(sourceType)
	return job, nil
}
