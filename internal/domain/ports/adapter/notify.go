package adapter

import (
	"context"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
)

// Notifier pushes a short notice when a job reaches a terminal state.
// Implementations must be safe for concurrent use; failures are logged
// by callers and never affect the job outcome.
type Notifier interface {
	NotifyJobDone(ctx context.Context, job *model.Job) error
}
