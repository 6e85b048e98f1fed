// File: internal/dispatcher/mocks_test.go
package dispatcher

import (
	"context"
	"sync"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/pipeline"
)

// stubExecutor delegates to fn so each test controls stage behavior.
type stubExecutor struct {
	fn func(ctx context.Context, stage pipeline.StageSpec, input pipeline.Context) (string, error)
}

var _ pipeline.Executor = (*stubExecutor)(nil)

func (s *stubExecutor) Execute(ctx context.Context, stage pipeline.StageSpec, input pipeline.Context) (string, error) {
	return s.fn(ctx, stage, input)
}

func instantExecutor() *stubExecutor {
	return &stubExecutor{fn: func(_ context.Context, stage pipeline.StageSpec, _ pipeline.Context) (string, error) {
		return "output of " + stage.Name + " https://example.org/src", nil
	}}
}

// blockingExecutor parks every stage until its context is cancelled.
func blockingExecutor(started chan<- struct{}) *stubExecutor {
	var once sync.Once
	return &stubExecutor{fn: func(ctx context.Context, _ pipeline.StageSpec, _ pipeline.Context) (string, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return "", ctx.Err()
	}}
}

// mockNotifier records terminal notifications.
type mockNotifier struct {
	mu    sync.Mutex
	calls []*model.Job
}

var _ adapter.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) NotifyJobDone(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, job)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
