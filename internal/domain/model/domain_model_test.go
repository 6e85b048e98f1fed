package model

import (
	"testing"
	"time"
)

func TestJobStateMachine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from JobState
		to   JobState
		ok   bool
	}{
		{JobStateQueued, JobStateRunning, true},
		{JobStateQueued, JobStateFailed, true},
		{JobStateQueued, JobStateCompleted, false},
		{JobStateRunning, JobStateCompleted, true},
		{JobStateRunning, JobStateFailed, true},
		{JobStateRunning, JobStateQueued, false},
		{JobStateCompleted, JobStateFailed, false},
		{JobStateCompleted, JobStateRunning, false},
		{JobStateFailed, JobStateCompleted, false},
		{JobStateFailed, JobStateRunning, false},
	}
	for _, tc := range cases {
		j := &Job{State: tc.from}
		if got := j.CanTransition(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestJobStateTerminal(t *testing.T) {
	t.Parallel()

	if JobStateQueued.Terminal() || JobStateRunning.Terminal() {
		t.Fatalf("queued/running must not be terminal")
	}
	if !JobStateCompleted.Terminal() || !JobStateFailed.Terminal() {
		t.Fatalf("completed/failed must be terminal")
	}
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	j := NewJob("id-1", "topic", now)
	if j.State != JobStateQueued {
		t.Fatalf("new job must start queued, got %s", j.State)
	}
	if j.Result != nil || j.Error != nil {
		t.Fatalf("new job must carry no outcome")
	}
	if !j.CreatedAt.Equal(now) || !j.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not set")
	}
}

func TestJobClone_Deep(t *testing.T) {
	t.Parallel()

	orig := &Job{
		ID:    "id-1",
		State: JobStateCompleted,
		Result: &ResearchReport{
			Report:  "text",
			Sources: []string{"https://example.org/a"},
		},
	}
	cp := orig.Clone()
	cp.Result.Report = "mutated"
	cp.Result.Sources[0] = "https://example.org/b"

	if orig.Result.Report != "text" {
		t.Fatalf("clone aliased the report")
	}
	if orig.Result.Sources[0] != "https://example.org/a" {
		t.Fatalf("clone aliased the sources slice")
	}

	failed := &Job{State: JobStateFailed, Error: NewJobError(FailureModel, "research", "boom")}
	cp2 := failed.Clone()
	cp2.Error.Message = "changed"
	if failed.Error.Message != "boom" {
		t.Fatalf("clone aliased the error")
	}
}

func TestJobError_Error(t *testing.T) {
	t.Parallel()

	e := NewJobError(FailureExecutorTimeout, "research", "stage exceeded its 5m0s budget")
	if e.Error() != "ExecutorTimeout at stage research: stage exceeded its 5m0s budget" {
		t.Fatalf("unexpected message: %q", e.Error())
	}
	e = NewJobError(FailureCancelled, "", "job cancelled")
	if e.Error() != "Cancelled: job cancelled" {
		t.Fatalf("unexpected message: %q", e.Error())
	}
}
