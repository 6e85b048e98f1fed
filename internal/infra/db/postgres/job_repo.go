package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// jobRepo is the Postgres-backed job store. State transitions are encoded
// in the WHERE clause of each UPDATE, so the database itself rejects any
// move out of a terminal state, and each statement publishes the record as
// a unit to concurrent readers.
type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

// EnsureSchema creates the research_jobs table if it is missing. Result and
// error are stored as jsonb so the record layout can grow without
// migrations; unknown fields are simply ignored on read.
func (r *jobRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS research_jobs (
  id            TEXT PRIMARY KEY,
  topic         TEXT NOT NULL,
  state         TEXT NOT NULL,
  current_stage TEXT NOT NULL DEFAULT '',
  result        JSONB,
  error         JSONB,
  created_at    TIMESTAMPTZ NOT NULL,
  updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS research_jobs_created_at_idx ON research_jobs (created_at DESC);`
	_, err := r.pool.Exec(ctx, q)
	return err
}

func (r *jobRepo) Create(ctx context.Context, job *model.Job) error {
	const q = `
INSERT INTO research_jobs (id, topic, state, current_stage, created_at, updated_at)
VALUES ($1, $2, $3, '', $4, $5);`
	_, err := r.pool.Exec(ctx, q, job.ID, job.Topic, string(job.State), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	const q = `
SELECT id, topic, state, current_stage, result, error, created_at, updated_at
FROM research_jobs WHERE id = $1;`

	var (
		job        model.Job
		state      string
		resultJSON []byte
		errJSON    []byte
	)
	row := r.pool.QueryRow(ctx, q, id)
	err := row.Scan(&job.ID, &job.Topic, &state, &job.CurrentStage, &resultJSON, &errJSON, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	job.State = model.JobState(state)
	if len(resultJSON) > 0 {
		var res model.ResearchReport
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		job.Result = &res
	}
	if len(errJSON) > 0 {
		var jobErr model.JobError
		if err := json.Unmarshal(errJSON, &jobErr); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		job.Error = &jobErr
	}
	return &job, nil
}

func (r *jobRepo) TransitionToRunning(ctx context.Context, id string) error {
	const q = `
UPDATE research_jobs SET state = 'running', updated_at = $2
WHERE id = $1 AND state = 'queued';`
	return r.guarded(ctx, id, q, time.Now().UTC())
}

func (r *jobRepo) RecordStageProgress(ctx context.Context, id, stage string) error {
	const q = `
UPDATE research_jobs SET current_stage = $2, updated_at = $3
WHERE id = $1 AND state = 'running';`
	return r.guarded(ctx, id, q, stage, time.Now().UTC())
}

func (r *jobRepo) Complete(ctx context.Context, id string, result *model.ResearchReport) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	const q = `
UPDATE research_jobs
SET state = 'completed', result = $2, error = NULL, current_stage = '', updated_at = $3
WHERE id = $1 AND state = 'running';`
	return r.guarded(ctx, id, q, data, time.Now().UTC())
}

func (r *jobRepo) Fail(ctx context.Context, id string, jobErr *model.JobError) error {
	data, err := json.Marshal(jobErr)
	if err != nil {
		return err
	}
	const q = `
UPDATE research_jobs
SET state = 'failed', error = $2, result = NULL, current_stage = '', updated_at = $3
WHERE id = $1 AND state IN ('queued', 'running');`
	return r.guarded(ctx, id, q, data, time.Now().UTC())
}

// guarded runs a state-guarded UPDATE and translates "no rows touched" into
// the matching domain error.
func (r *jobRepo) guarded(ctx context.Context, id, query string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		job, getErr := r.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		if job.State.Terminal() {
			return domain.ErrTerminalState
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *jobRepo) List(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id FROM research_jobs ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}
