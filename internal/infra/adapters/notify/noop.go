package notify

import (
	"context"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier is used when no notification channel is configured.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) NotifyJobDone(context.Context, *model.Job) error { return nil }
