package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIServiceAdapter over the official SDK.
// Token counting is done locally with tiktoken so prompts can be budgeted
// before the request is sent.
type OpenAIAdapter struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIAdapter(apiKey, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}, nil
}

func (o *OpenAIAdapter) CountTokens(_ context.Context, model string, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(modelOrDefault(model, o.defaultModel))
	if err != nil {
		// Unknown model names fall back to the common encoding.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
		total += 4 // rough per-message framing overhead
	}
	return total, nil
}

func (o *OpenAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := o.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelOrDefault(model, o.defaultModel)),
		Messages: toOpenAIMessages(messages),
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", adapter.Usage{}, errors.New("openai: no choices returned")
	}
	usage := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func toOpenAIMessages(messages []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
