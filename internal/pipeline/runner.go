package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/metrics"
)

// Executor performs one stage's work given its agent configuration and
// input context. It has no knowledge of job identity or the graph; the
// runner owns sequencing and state. Implementations must honor ctx
// cancellation and deadlines.
type Executor interface {
	Execute(ctx context.Context, stage StageSpec, input Context) (string, error)
}

// Runner walks the task descriptor graph for one job, threading stage
// outputs forward and publishing progress to the job store. One Runner is
// shared across jobs; all per-job state lives in Run's locals.
type Runner struct {
	jobs         repository.JobRepository
	exec         Executor
	graph        *Graph
	stageTimeout time.Duration
	log          *zerolog.Logger
}

func NewRunner(jobs repository.JobRepository, exec Executor, graph *Graph, stageTimeout time.Duration, logger *zerolog.Logger) *Runner {
	l := logger.With().Str("component", "PipelineRunner").Logger()
	if stageTimeout <= 0 {
		stageTimeout = 5 * time.Minute
	}
	return &Runner{jobs: jobs, exec: exec, graph: graph, stageTimeout: stageTimeout, log: &l}
}

// Run executes the pipeline for jobID and returns the terminal state the
// job reached. It always leaves the job terminal: every failure path,
// including cancellation and deadline expiry, records a structured error.
func (r *Runner) Run(ctx context.Context, jobID, topic string) model.JobState {
	log := r.log.With().Str("job_id", jobID).Logger()

	if err := r.jobs.TransitionToRunning(ctx, jobID); err != nil {
		// Most likely the dispatcher already failed the job (e.g. cancel
		// raced submission); don't fight over the record.
		log.Warn().Err(err).Msg("could not transition job to running")
		return r.fail(&log, jobID, model.NewJobError(model.FailureInternal, "", "job could not start: "+err.Error()))
	}

	execCtx := NewContext(topic, strconv.Itoa(time.Now().Year()))
	outputs := make([]string, 0, r.graph.Len())

	for _, stage := range r.graph.Stages() {
		// Cancellation is cooperative: observed here, at the stage boundary.
		if err := ctx.Err(); err != nil {
			return r.fail(&log, jobID, boundaryError(ctx, stage.Name))
		}

		input, jobErr := r.stageInput(stage, execCtx)
		if jobErr != nil {
			return r.fail(&log, jobID, jobErr)
		}

		if err := r.jobs.RecordStageProgress(ctx, jobID, stage.Name); err != nil {
			return r.fail(&log, jobID, model.NewJobError(model.FailureInternal, stage.Name, "record progress: "+err.Error()))
		}

		log.Info().Str("stage", stage.Name).Msg("stage started")
		start := time.Now()

		stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
		out, err := r.exec.Execute(stageCtx, stage, input)
		cancel()

		elapsed := time.Since(start)
		if err != nil {
			jobErr := r.classify(ctx, stage.Name, err)
			metrics.ObserveStage(stage.Name, "failed", elapsed)
			log.Error().Err(err).Str("stage", stage.Name).Dur("duration", elapsed).
				Str("kind", string(jobErr.Kind)).Msg("stage failed")
			return r.fail(&log, jobID, jobErr)
		}

		metrics.ObserveStage(stage.Name, "completed", elapsed)
		log.Info().Str("stage", stage.Name).Dur("duration", elapsed).Msg("stage completed")
		execCtx[stage.Name] = out
		outputs = append(outputs, out)
	}

	report := &model.ResearchReport{
		Report:      execCtx[r.graph.Final()],
		Sources:     ExtractSources(outputs...),
		CompletedAt: time.Now().UTC(),
		JobID:       jobID,
		Topic:       topic,
	}

	// Terminal writes use a fresh context so a cancelled job context can
	// never leave the record stuck in running.
	if err := r.jobs.Complete(context.Background(), jobID, report); err != nil {
		log.Error().Err(err).Msg("could not complete job")
		return model.JobStateFailed
	}
	log.Info().Int("stages", r.graph.Len()).Int("sources", len(report.Sources)).Msg("job completed")
	return model.JobStateCompleted
}

// stageInput assembles the stage's input context from the reserved keys and
// its declared dependency outputs. A missing output is an internal invariant
// violation (the graph was validated at startup), so it fails the job
// instead of crashing the process.
func (r *Runner) stageInput(stage StageSpec, execCtx Context) (Context, *model.JobError) {
	input := Context{TopicKey: execCtx[TopicKey], YearKey: execCtx[YearKey]}
	for _, dep := range stage.DependsOn {
		out, ok := execCtx[dep]
		if !ok {
			return nil, model.NewJobError(model.FailureMissingDependency, stage.Name,
				fmt.Sprintf("output of stage %q is absent from the execution context", dep))
		}
		input[dep] = out
	}
	return input, nil
}

// classify turns an executor error into the structured failure recorded on
// the job. Executors may already return a *model.JobError; anything else is
// mapped from the context state.
func (r *Runner) classify(jobCtx context.Context, stage string, err error) *model.JobError {
	var jobErr *model.JobError
	if errors.As(err, &jobErr) {
		if jobErr.Stage == "" {
			jobErr.Stage = stage
		}
		return jobErr
	}
	if jobCtx.Err() != nil {
		return boundaryError(jobCtx, stage)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewJobError(model.FailureExecutorTimeout, stage,
			fmt.Sprintf("stage exceeded its %s budget", r.stageTimeout))
	}
	return model.NewJobError(model.FailureModel, stage, err.Error())
}

// boundaryError maps a done job context to a Cancelled failure. An expired
// per-job deadline is surfaced the same way a caller cancellation is.
func boundaryError(jobCtx context.Context, stage string) *model.JobError {
	msg := "job cancelled"
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		msg = "job deadline exceeded"
	}
	return model.NewJobError(model.FailureCancelled, stage, msg)
}

func (r *Runner) fail(log *zerolog.Logger, jobID string, jobErr *model.JobError) model.JobState {
	if err := r.jobs.Fail(context.Background(), jobID, jobErr); err != nil {
		log.Error().Err(err).Msg("could not record job failure")
	}
	return model.JobStateFailed
}
