package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/metrics"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/pipeline"
)

// Tool is one capability an agent may invoke before prompting the model,
// e.g. an arxiv search. Tools must honor ctx and return human-readable text
// that is spliced into the prompt.
type Tool interface {
	Name() string
	Run(ctx context.Context, query string) (string, error)
}

// ModelExecutor executes one stage: it gathers tool output, assembles the
// prompt from the stage's agent configuration and input context, and asks
// the model for the stage artifact. It is a pure function of (stage, input)
// plus the injected adapter; it knows nothing about jobs or the graph.
type ModelExecutor struct {
	ai              adapter.AIServiceAdapter
	tools           map[string]Tool
	provider        string
	defaultModel    string
	maxPromptTokens int
	log             *zerolog.Logger
}

func NewModelExecutor(ai adapter.AIServiceAdapter, tools []Tool, provider, defaultModel string, maxPromptTokens int, logger *zerolog.Logger) *ModelExecutor {
	reg := make(map[string]Tool, len(tools))
	for _, t := range tools {
		reg[t.Name()] = t
	}
	if maxPromptTokens <= 0 {
		maxPromptTokens = 12000
	}
	l := logger.With().Str("component", "ModelExecutor").Logger()
	return &ModelExecutor{
		ai:              ai,
		tools:           reg,
		provider:        provider,
		defaultModel:    defaultModel,
		maxPromptTokens: maxPromptTokens,
		log:             &l,
	}
}

var _ pipeline.Executor = (*ModelExecutor)(nil)

func (e *ModelExecutor) Execute(ctx context.Context, stage pipeline.StageSpec, input pipeline.Context) (string, error) {
	execID := ulid.Make().String()
	log := e.log.With().Str("exec_id", execID).Str("stage", stage.Name).Logger()

	interp := strings.NewReplacer(
		"{topic}", input[pipeline.TopicKey],
		"{current_year}", input[pipeline.YearKey],
	)

	var sb strings.Builder
	sb.WriteString(interp.Replace(stage.Prompt))
	if stage.ExpectedOutput != "" {
		sb.WriteString("\n\nExpected output: ")
		sb.WriteString(interp.Replace(stage.ExpectedOutput))
	}

	// Outputs of dependency stages come first, then live tool results.
	for _, dep := range stage.DependsOn {
		if out, ok := input[dep]; ok {
			fmt.Fprintf(&sb, "\n\n--- Context from stage %s ---\n%s", dep, out)
		}
	}

	for _, name := range stage.Agent.Tools {
		tool, ok := e.tools[name]
		if !ok {
			return "", model.NewJobError(model.FailureTool, stage.Name,
				fmt.Sprintf("tool %q is not registered", name))
		}
		start := time.Now()
		out, err := tool.Run(ctx, input[pipeline.TopicKey])
		if err != nil {
			return "", model.NewJobError(model.FailureTool, stage.Name,
				fmt.Sprintf("tool %s: %v", name, err))
		}
		log.Debug().Str("tool", name).Dur("duration", time.Since(start)).Msg("tool finished")
		fmt.Fprintf(&sb, "\n\n--- Results from %s ---\n%s", name, out)
	}

	msgs := []adapter.Message{
		{Role: "system", Content: e.systemPrompt(stage.Agent, interp)},
		{Role: "user", Content: sb.String()},
	}

	modelName := stage.Agent.Model
	if modelName == "" {
		modelName = e.defaultModel
	}

	msgs = e.fitBudget(ctx, modelName, msgs, &log)

	callStart := time.Now()
	reply, usage, err := e.ai.ChatWithUsage(ctx, modelName, msgs)
	latency := time.Since(callStart)
	if err != nil {
		metrics.ObserveChatUsage(e.provider, modelName, 0, 0, 0, int(latency/time.Millisecond), false)
		return "", fmt.Errorf("model call: %w", err)
	}
	metrics.ObserveChatUsage(e.provider, modelName,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		int(latency/time.Millisecond), true)

	if strings.TrimSpace(reply) == "" {
		return "", model.NewJobError(model.FailureModel, stage.Name, "model returned an empty artifact")
	}
	log.Info().Int("prompt_tokens", usage.PromptTokens).Int("completion_tokens", usage.CompletionTokens).
		Dur("latency", latency).Msg("stage artifact produced")
	return reply, nil
}

func (e *ModelExecutor) systemPrompt(a pipeline.AgentSpec, interp *strings.Replacer) string {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(interp.Replace(a.Role))
	sb.WriteString(".")
	if a.Backstory != "" {
		sb.WriteString(" ")
		sb.WriteString(interp.Replace(a.Backstory))
	}
	if a.Goal != "" {
		sb.WriteString(" Your goal: ")
		sb.WriteString(interp.Replace(a.Goal))
		sb.WriteString(".")
	}
	return sb.String()
}

// fitBudget trims the user message until the prompt fits the token budget.
// Counting is best-effort; when it fails the messages pass through as-is.
func (e *ModelExecutor) fitBudget(ctx context.Context, modelName string, msgs []adapter.Message, log *zerolog.Logger) []adapter.Message {
	for i := 0; i < 8; i++ {
		n, err := e.ai.CountTokens(ctx, modelName, msgs)
		if err != nil {
			log.Debug().Err(err).Msg("token counting unavailable")
			return msgs
		}
		if n <= e.maxPromptTokens {
			return msgs
		}
		user := &msgs[len(msgs)-1]
		runes := []rune(user.Content)
		if len(runes) < 2000 {
			return msgs
		}
		user.Content = string(runes[:len(runes)*3/4]) + "\n\n[context truncated]"
		log.Debug().Int("tokens", n).Int("budget", e.maxPromptTokens).Msg("prompt over budget, truncating context")
	}
	return msgs
}
