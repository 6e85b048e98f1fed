package repository

import (
	"context"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
)

// JobRepository is the single source of truth for job records.
//
// Every mutating method is atomic per job id: a concurrent reader never
// observes a half-written record (e.g. state completed with a nil result).
// Operations on different job ids must not serialize each other.
type JobRepository interface {
	// Create stores a new queued job. Fails with domain.ErrAlreadyExists
	// if the id is taken.
	Create(ctx context.Context, job *model.Job) error

	// Get returns a copy of the record, or domain.ErrJobNotFound.
	Get(ctx context.Context, id string) (*model.Job, error)

	// TransitionToRunning moves queued -> running.
	TransitionToRunning(ctx context.Context, id string) error

	// RecordStageProgress publishes the stage currently in progress.
	// Only valid while the job is running.
	RecordStageProgress(ctx context.Context, id, stage string) error

	// Complete moves the job to its completed terminal state with the
	// final artifact. Fails with domain.ErrTerminalState if already terminal.
	Complete(ctx context.Context, id string, result *model.ResearchReport) error

	// Fail moves the job to its failed terminal state with a structured
	// error. Fails with domain.ErrTerminalState if already terminal.
	Fail(ctx context.Context, id string, jobErr *model.JobError) error

	// List returns up to limit most recently created jobs (admin surface).
	List(ctx context.Context, limit int) ([]*model.Job, error)
}
