package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobStore)(nil)

// JobStore persists job records in Redis so callers can still poll results
// across process restarts. Each record is one JSON value written as a unit,
// so readers never see a torn record; `json.Unmarshal` ignores unknown
// fields, which keeps old records readable after the schema grows.
//
// Only the job's owning runner ever mutates a record (the dispatcher
// enforces one run per job), so read-modify-write here does not race.
type JobStore struct {
	client RedisClient
	ttl    time.Duration // retention for terminal records
}

func NewJobStore(client RedisClient, ttl time.Duration) *JobStore {
	return &JobStore{client: client, ttl: ttl}
}

const jobIndexKey = "research_jobs:by_created"

func jobKey(id string) string { return fmt.Sprintf("research_job:%s", id) }

func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, jobKey(job.ID), data, 0)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return s.client.ZAdd(ctx, jobIndexKey, float64(job.CreatedAt.UnixNano()), job.ID)
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) mutate(ctx context.Context, id string, fn func(*model.Job) error) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(job); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if job.State.Terminal() {
		ttl = s.ttl
	}
	return s.client.Set(ctx, jobKey(id), data, ttl)
}

func (s *JobStore) TransitionToRunning(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateRunning) {
			return transitionErr(j)
		}
		j.State = model.JobStateRunning
		return nil
	})
}

func (s *JobStore) RecordStageProgress(ctx context.Context, id, stage string) error {
	return s.mutate(ctx, id, func(j *model.Job) error {
		if j.State != model.JobStateRunning {
			return transitionErr(j)
		}
		j.CurrentStage = stage
		return nil
	})
}

func (s *JobStore) Complete(ctx context.Context, id string, result *model.ResearchReport) error {
	return s.mutate(ctx, id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateCompleted) {
			return transitionErr(j)
		}
		j.State = model.JobStateCompleted
		j.Result = result
		j.Error = nil
		j.CurrentStage = ""
		return nil
	})
}

func (s *JobStore) Fail(ctx context.Context, id string, jobErr *model.JobError) error {
	return s.mutate(ctx, id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateFailed) {
			return transitionErr(j)
		}
		j.State = model.JobStateFailed
		j.Error = jobErr
		j.Result = nil
		j.CurrentStage = ""
		return nil
	})
}

func (s *JobStore) List(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.ZRevRange(ctx, jobIndexKey, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				continue // expired record still in the index
			}
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func transitionErr(j *model.Job) error {
	if j.State.Terminal() {
		return domain.ErrTerminalState
	}
	return domain.ErrInvalidTransition
}
