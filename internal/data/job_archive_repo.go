package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-agent-api/internal/data/pgxutil"
	"github.com/target/mmk-agent-api/internal/domain/model"
	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

// JobArchiveRepo keeps a durable copy of terminal jobs in Postgres.
type JobArchiveRepo struct {
	DB *sql.DB
}

// NewJobArchiveRepo constructs a JobArchiveRepo.
func NewJobArchiveRepo(db *sql.DB) *JobArchiveRepo {
	return &JobArchiveRepo{DB: db}
}

type archiveRow struct {
	ID         string          `db:"id"`
	Status     string          `db:"status"`
	Task       string          `db:"task"`
	Record     json.RawMessage `db:"record"`
	CreatedAt  time.Time       `db:"created_at"`
	ArchivedAt time.Time       `db:"archived_at"`
}

// Save upserts the job snapshot keyed by its id.
func (r *JobArchiveRepo) Save(ctx context.Context, job *model.Job) error {
	if r == nil || r.DB == nil {
		return ErrArchiveNotConfigured
	}
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}

	const query = `
		INSERT INTO job_archive (id, status, task, record, created_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id)
		DO UPDATE SET
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			archived_at = now();`
	if _, err := r.DB.ExecContext(ctx, query, job.ID, string(job.Status), job.Input, record, job.CreatedAt); err != nil {
		return fmt.Errorf("upsert job_archive: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Get returns the archived job record.
func (r *JobArchiveRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	if r == nil || r.DB == nil {
		return nil, ErrArchiveNotConfigured
	}
	if id == "" {
		return nil, ErrJobIDRequired
	}

	const query = `
		SELECT id, status, task, record, created_at, archived_at
		FROM job_archive
		WHERE id = $1`

	var row archiveRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[archiveRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get job_archive: %w", apperrors.MapDBError(err))
	}

	var job model.Job
	if err := json.Unmarshal(row.Record, &job); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return &job, nil
}
