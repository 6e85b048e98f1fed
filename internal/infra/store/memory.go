package store

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*MemoryJobStore)(nil)

const shardCount = 16

// MemoryJobStore keeps job records in sharded maps. Records are published
// as a unit: every mutation clones the stored record, applies the change and
// swaps the pointer under the shard lock, so a concurrent Get can never see
// a half-written job. Sharding keeps unrelated jobs from serializing on a
// single lock.
type MemoryJobStore struct {
	shards [shardCount]shard
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	s := &MemoryJobStore{}
	for i := range s.shards {
		s.shards[i].jobs = make(map[string]*model.Job)
	}
	return s
}

func (s *MemoryJobStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *MemoryJobStore) Create(_ context.Context, job *model.Job) error {
	sh := s.shardFor(job.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.jobs[job.ID]; exists {
		return domain.ErrAlreadyExists
	}
	sh.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*model.Job, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	job, ok := sh.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

// mutate applies fn to a clone of the record and swaps it in atomically.
func (s *MemoryJobStore) mutate(id string, fn func(*model.Job) error) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	job, ok := sh.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	next := job.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	sh.jobs[id] = next
	return nil
}

func (s *MemoryJobStore) TransitionToRunning(_ context.Context, id string) error {
	return s.mutate(id, func(j *model.Job) error {
		if !j.CanTransition(model.JobStateRunning) {
			return transitionErr(j)
		}
		j.State = model.JobStateRunning
		return nil
	})
}

func (s *MemoryJobStore) RecordStageProgress(_ context.Context, id, stage string) error {
	return s.mutate(id, func(j *model.Job) error {
		if j.State != model.JobStateRunning {
			return transitionErr(j)
		}
		j.CurrentStage = stage
		return nil
	})
}

func (s *MemoryJobStore) Complete(_ context.Context, id string, result *model.ResearchReport) error {
	return s.mutate(id, func(j *model.Job) error {
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

func (s *MemoryJobStore) Fail(_ context.Context, id string, jobErr *model.JobError) error {
	return s.mutate(id, func(j *model.Job) error {
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

func (s *MemoryJobStore) List(_ context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*model.Job
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, j := range sh.jobs {
			out = append(out, j.Clone())
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func transitionErr(j *model.Job) error {
	if j.State.Terminal() {
		return domain.ErrTerminalState
	}
	return domain.ErrInvalidTransition
}
