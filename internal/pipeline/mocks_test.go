// File: internal/pipeline/mocks_test.go
package pipeline

import (
	"context"
	"sync"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
)

// --- in-memory job repository mock ---

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.Job{}}
}

func (r *memJobRepo) Create(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *memJobRepo) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (r *memJobRepo) update(id string, fn func(*model.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	return fn(j)
}

func (r *memJobRepo) TransitionToRunning(_ context.Context, id string) error {
	return r.update(id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateRunning) {
			return domain.ErrInvalidTransition
		}
		j.State = model.JobStateRunning
		return nil
	})
}

func (r *memJobRepo) RecordStageProgress(_ context.Context, id, stage string) error {
	return r.update(id, func(j *model.Job) error {
		j.CurrentStage = stage
		return nil
	})
}

func (r *memJobRepo) Complete(_ context.Context, id string, result *model.ResearchReport) error {
	return r.update(id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateCompleted) {
			return domain.ErrTerminalState
		}
		j.State = model.JobStateCompleted
		j.Result = result
		return nil
	})
}

func (r *memJobRepo) Fail(_ context.Context, id string, jobErr *model.JobError) error {
	return r.update(id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateFailed) {
			return domain.ErrTerminalState
		}
		j.State = model.JobStateFailed
		j.Error = jobErr
		return nil
	})
}

func (r *memJobRepo) List(_ context.Context, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

// --- executor stub ---

type stubExecutor struct {
	fn func(ctx context.Context, stage StageSpec, input Context) (string, error)
}

var _ Executor = (*stubExecutor)(nil)

func (s *stubExecutor) Execute(ctx context.Context, stage StageSpec, input Context) (string, error) {
	return s.fn(ctx, stage, input)
}
