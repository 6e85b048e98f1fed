package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/logging"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/metrics"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/worker"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/pipeline"
)

// Dispatcher admits research jobs and supervises their execution. Submit
// creates the record and schedules the pipeline on the worker pool exactly
// once, returning immediately; callers poll through Status/Result. Whatever
// happens inside the pipeline, including a panic, the job always reaches a
// terminal state.
type Dispatcher struct {
	jobs       repository.JobRepository
	runner     *pipeline.Runner
	pool       *worker.Pool
	notifier   adapter.Notifier
	jobTimeout time.Duration
	log        *zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(jobs repository.JobRepository, runner *pipeline.Runner, pool *worker.Pool, notifier adapter.Notifier, jobTimeout time.Duration, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "Dispatcher").Logger()
	return &Dispatcher{
		jobs:       jobs,
		runner:     runner,
		pool:       pool,
		notifier:   notifier,
		jobTimeout: jobTimeout,
		log:        &l,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Submit validates the topic, creates a queued job and schedules its
// pipeline run. The returned id is immediately pollable.
func (d *Dispatcher) Submit(ctx context.Context, topic string) (string, error) {
	defer logging.TraceDuration(d.log, "Dispatcher.Submit")()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("%w: topic is required", domain.ErrInvalidInput)
	}

	id := uuid.NewString()
	job := model.NewJob(id, topic, time.Now().UTC())
	if err := d.jobs.Create(ctx, job); err != nil {
		return "", err
	}

	// The run owns its own context: the caller's request context ends as
	// soon as Submit returns. A configured job timeout caps the whole
	// pipeline; expiry is handled like a cancellation at a stage boundary.
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d.jobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), d.jobTimeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}
	d.mu.Lock()
	d.cancels[id] = cancel
	d.mu.Unlock()

	err := d.pool.Submit(func(context.Context) error {
		d.execute(runCtx, id, topic)
		return nil
	})
	if err != nil {
		// Still terminal and inspectable: the caller keeps the id but the
		// job fails instead of sitting queued forever.
		d.release(id)
		d.log.Warn().Str("job_id", id).Err(err).Msg("could not schedule job")
		_ = d.jobs.Fail(context.Background(), id,
			model.NewJobError(model.FailureInternal, "", domain.ErrQueueSaturated.Error()))
		return id, nil
	}

	metrics.JobStarted()
	d.log.Info().Str("job_id", id).Str("topic", topic).Msg("job submitted")
	return id, nil
}

// execute runs one job's pipeline and guarantees a terminal state even if
// the runner panics.
func (d *Dispatcher) execute(ctx context.Context, id, topic string) {
	ctx = logging.WithJobID(ctx, id)
	defer metrics.JobFinished()
	defer d.release(id)
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error().Str("job_id", id).Interface("panic", rec).Msg("pipeline panicked")
			_ = d.jobs.Fail(context.Background(), id,
				model.NewJobError(model.FailureInternal, "", "unexpected execution failure"))
			metrics.IncJob(string(model.JobStateFailed))
			d.notify(id)
		}
	}()

	state := d.runner.Run(ctx, id, topic)
	metrics.IncJob(string(state))
	d.notify(id)
}

// Status returns the job record without forcing result materialization.
func (d *Dispatcher) Status(ctx context.Context, id string) (*model.Job, error) {
	return d.jobs.Get(ctx, id)
}

// Result returns the artifact of a completed job, the structured error of a
// failed one, or domain.ErrResultNotReady while the job is still in flight.
func (d *Dispatcher) Result(ctx context.Context, id string) (*model.ResearchReport, *model.JobError, error) {
	job, err := d.jobs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	switch job.State {
	case model.JobStateCompleted:
		return job.Result, nil, nil
	case model.JobStateFailed:
		return nil, job.Error, nil
	default:
		return nil, nil, domain.ErrResultNotReady
	}
}

// Cancel requests cooperative cancellation. The pipeline observes it at the
// next stage boundary; an in-flight model call is interrupted through its
// context. Cancelling a terminal job returns domain.ErrTerminalState.
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	job, err := d.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return domain.ErrTerminalState
	}

	d.mu.Lock()
	cancel, ok := d.cancels[id]
	d.mu.Unlock()
	if !ok {
		// Raced with completion; the record is (or is about to be) terminal.
		return domain.ErrTerminalState
	}
	cancel()
	metrics.IncJobCancelled()
	d.log.Info().Str("job_id", id).Msg("job cancellation requested")
	return nil
}

// List exposes recent jobs for the admin surface.
func (d *Dispatcher) List(ctx context.Context, limit int) ([]*model.Job, error) {
	return d.jobs.List(ctx, limit)
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	cancel, ok := d.cancels[id]
	delete(d.cancels, id)
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Dispatcher) notify(id string) {
	if d.notifier == nil {
		return
	}
	job, err := d.jobs.Get(context.Background(), id)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.notifier.NotifyJobDone(ctx, job); err != nil {
		d.log.Warn().Str("job_id", id).Err(err).Msg("completion notification failed")
	}
}
