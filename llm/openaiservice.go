package llm

import (
	"context"

	"loom"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIService implements Service against github.com/openai/openai-go,
// grounded on the teacher's streamnode/streamnode.go client wrapping
// (that file only ever exercised Completions.NewStreaming; this gives
// the same dependency a second, non-streaming call site the teacher's
// own tree never wired up).
type OpenAIService struct {
	client *openai.Client
}

// NewOpenAIService builds a Service from an API key, mirroring
// streamnode.go's option.WithAPIKey client construction.
func NewOpenAIService(apiKey string, opts ...option.RequestOption) *OpenAIService {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIService{client: openai.NewClient(all...)}
}

func (s *OpenAIService) Generate(ctx context.Context, cfg GenerateConfig, transcript []Message, tools []ToolSpec) (string, loom.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.F(cfg.Model),
		Temperature: openai.Float(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(cfg.MaxTokens))
	}
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range transcript {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params.Messages = openai.F(messages)

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", loom.Usage{}, loom.NewError(loom.KindServiceUnavailable, "openai", err)
	}

	usage := loom.Usage{
		PromptTokens:      int(resp.Usage.PromptTokens),
		CompletionTokens:  int(resp.Usage.CompletionTokens),
		TotalTokens:       int(resp.Usage.TotalTokens),
		APICalls:          1,
		Model:             cfg.Model,
		Provider:          "openai",
		ProviderRequestID: resp.ID,
	}

	if len(resp.Choices) == 0 {
		return "", usage, nil
	}
	return resp.Choices[0].Message.Content, usage, nil
}
