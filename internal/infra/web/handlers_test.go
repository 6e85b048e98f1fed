//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/dispatcher"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/store"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/worker"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/pipeline"
)

type stageFn func(ctx context.Context, stage pipeline.StageSpec, input pipeline.Context) (string, error)

func (f stageFn) Execute(ctx context.Context, stage pipeline.StageSpec, input pipeline.Context) (string, error) {
	return f(ctx, stage, input)
}

type webFixture struct {
	handler http.Handler
	disp    *dispatcher.Dispatcher
}

func newWebFixture(t *testing.T, exec pipeline.Executor, auth *AuthManager) *webFixture {
	t.Helper()
	nop := zerolog.Nop()

	g, err := pipeline.NewGraph(pipeline.DefaultSpecs())
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	jobs := store.NewMemoryJobStore()
	runner := pipeline.NewRunner(jobs, exec, g, time.Minute, &nop)

	pool := worker.NewPool(2, 8, &nop)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)
	t.Cleanup(pool.Stop)

	disp := dispatcher.New(jobs, runner, pool, nil, 0, &nop)
	srv := NewServer(disp, auth, 0, &nop)
	return &webFixture{handler: srv.Handler(), disp: disp}
}

func instantStages() pipeline.Executor {
	return stageFn(func(_ context.Context, stage pipeline.StageSpec, _ pipeline.Context) (string, error) {
		return "output of " + stage.Name + " https://example.org/src", nil
	})
}

func (f *webFixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (f *webFixture) submit(t *testing.T, topic string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/research", map[string]string{"topic": topic}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[statusResponse](t, rec)
	if resp.JobID == "" {
		t.Fatalf("missing job_id in %s", rec.Body.String())
	}
	return resp.JobID
}

func (f *webFixture) waitTerminal(t *testing.T, id string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.disp.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if job.State.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return nil
}

func TestAPI_SubmitAndFetchResult(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t, instantStages(), nil)
	id := f.submit(t, "quantum computing")
	f.waitTerminal(t, id)

	rec := f.do(t, http.MethodGet, "/api/research/"+id, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	status := decodeBody[statusResponse](t, rec)
	if status.Status != string(model.JobStateCompleted) {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	rec = f.do(t, http.MethodGet, "/api/research/"+id+"/result", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[model.ResearchReport](t, rec)
	if report.JobID != id || report.Report == "" || report.Topic != "quantum computing" {
		t.Fatalf("report malformed: %+v", report)
	}
	if len(report.Sources) == 0 {
		t.Fatalf("expected sources in report")
	}
}

func TestAPI_SubmitValidation(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t, instantStages(), nil)

	rec := f.do(t, http.MethodPost, "/api/research", map[string]string{"topic": "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty topic, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/research", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rr.Code)
	}
}

func TestAPI_UnknownJobIs404(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t, instantStages(), nil)
	for _, path := range []string{
		"/api/research/ghost",
		"/api/research/ghost/result",
	} {
		rec := f.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	rec := f.do(t, http.MethodDelete, "/api/research/ghost", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel ghost: expected 404, got %d", rec.Code)
	}
}

func TestAPI_ResultNotReadyConflict(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var once sync.Once
	blocking := stageFn(func(ctx context.Context, _ pipeline.StageSpec, _ pipeline.Context) (string, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return "", ctx.Err()
	})

	f := newWebFixture(t, blocking, nil)
	id := f.submit(t, "slow topic")
	<-started

	rec := f.do(t, http.MethodGet, "/api/research/"+id+"/result", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/research/"+id, nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on cancel, got %d: %s", rec.Code, rec.Body.String())
	}
	f.waitTerminal(t, id)

	// terminal now: second cancel conflicts, result reports the failure
	rec = f.do(t, http.MethodDelete, "/api/research/"+id, nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling terminal job, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/research/"+id+"/result", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failed job, got %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Cause == nil || resp.Cause.Kind != model.FailureCancelled {
		t.Fatalf("expected Cancelled cause, got %+v", resp.Cause)
	}
}

func TestAPI_AdminAuthFlow(t *testing.T) {
	t.Parallel()

	auth := NewAuthManager("test-secret", "test-api-key", false, time.Minute)
	f := newWebFixture(t, instantStages(), auth)
	f.submit(t, "topic one")

	// no token
	rec := f.do(t, http.MethodGet, "/api/v1/jobs", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// wrong key
	rec = f.do(t, http.MethodPost, "/api/v1/login", map[string]string{"api_key": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}

	// right key mints a token
	rec = f.do(t, http.MethodPost, "/api/v1/login", map[string]string{"api_key": "test-api-key"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d", rec.Code)
	}
	login := decodeBody[map[string]string](t, rec)
	token := login["token"]
	if token == "" {
		t.Fatalf("missing token in login response")
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	rec = f.do(t, http.MethodGet, "/api/v1/jobs?limit=10", nil, h)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	list := decodeBody[struct {
		Data  []*model.Job `json:"data"`
		Total int          `json:"total"`
	}](t, rec)
	if list.Total != 1 || len(list.Data) != 1 {
		t.Fatalf("expected one job in list, got %+v", list)
	}
}

func TestAPI_Health(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t, instantStages(), nil)
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
