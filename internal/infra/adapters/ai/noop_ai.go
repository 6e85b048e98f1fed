package ai

import (
	"context"
	"time"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev runs.
// It returns a canned artifact instead of calling a real model.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) CountTokens(_ context.Context, _ string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4 // crude chars-per-token estimate
	}
	return total, nil
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := a.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	// Simulate slight processing time and respect ctx.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	prompt, _ := a.CountTokens(ctx, model, messages)
	reply := "This is a canned response produced without a model call."
	return reply, adapter.Usage{
		PromptTokens:     prompt,
		CompletionTokens: len(reply) / 4,
		TotalTokens:      prompt + len(reply)/4,
	}, nil
}
