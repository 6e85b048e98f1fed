package model

import "time"

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// FailureKind classifies how a job failed. The kind is part of the caller
// visible contract, so the values are stable strings.
type FailureKind string

const (
	FailureExecutorTimeout   FailureKind = "ExecutorTimeout"
	FailureTool              FailureKind = "ToolFailure"
	FailureModel             FailureKind = "ModelFailure"
	FailureMissingDependency FailureKind = "MissingDependencyOutput"
	FailureCancelled         FailureKind = "Cancelled"
	FailureInternal          FailureKind = "InternalExecutionError"
)

// JobError is the structured failure detail stored on a failed job.
// It is the only error shape ever exposed to callers; raw executor errors
// stay in the message summary, never as stack traces.
type JobError struct {
	Kind    FailureKind `json:"kind"`
	Stage   string      `json:"stage,omitempty"`
	Message string      `json:"message"`
}

func (e *JobError) Error() string {
	if e.Stage != "" {
		return string(e.Kind) + " at stage " + e.Stage + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

func NewJobError(kind FailureKind, stage, message string) *JobError {
	return &JobError{Kind: kind, Stage: stage, Message: message}
}

// Job is one tracked research request from submission to terminal outcome.
//
// Exactly one of Result/Error is set once the job is terminal; neither is
// set before that. State only ever moves queued -> running -> completed|failed.
type Job struct {
	ID           string          `json:"id"`
	Topic        string          `json:"topic"`
	State        JobState        `json:"state"`
	CurrentStage string          `json:"current_stage,omitempty"`
	Result       *ResearchReport `json:"result,omitempty"`
	Error        *JobError       `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewJob(id, topic string, now time.Time) *Job {
	return &Job{
		ID:        id,
		Topic:     topic,
		State:     JobStateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Result != nil {
		r := *j.Result
		r.Sources = append([]string(nil), j.Result.Sources...)
		cp.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	return &cp
}

// CanTransition reports whether moving to next respects the one-directional
// state machine. Terminal states accept nothing.
func (j *Job) CanTransition(next JobState) bool {
	switch j.State {
	case JobStateQueued:
		return next == JobStateRunning || next == JobStateFailed
	case JobStateRunning:
		return next == JobStateCompleted || next == JobStateFailed
	default:
		return false
	}
}
