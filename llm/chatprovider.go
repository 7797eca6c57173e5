package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"loom"

	openai "github.com/sashabaranov/go-openai"
)

// ChatProvider implements Service against github.com/sashabaranov/go-openai,
// grounded on the teacher's nodes/openai/createchatcompletion.go client
// wrapping and nodes/openai/middleware/tools.go's function-calling
// ToolDefinition shape.
type ChatProvider struct {
	client *openai.Client
}

// NewChatProvider wraps an already-constructed *openai.Client.
func NewChatProvider(client *openai.Client) *ChatProvider {
	return &ChatProvider{client: client}
}

func (p *ChatProvider) Generate(ctx context.Context, cfg GenerateConfig, transcript []Message, tools []ToolSpec) (string, loom.Usage, error) {
	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		Messages:    toChatMessages(transcript),
	}
	if len(tools) > 0 {
		req.Tools = toChatTools(tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", loom.Usage{}, loom.NewError(loom.KindServiceUnavailable, "openai-chat", err)
	}

	usage := loom.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		APICalls:         1,
		Model:            cfg.Model,
		Provider:         "openai-chat",
		ProviderRequestID: resp.ID,
	}

	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("chatprovider: empty choices in response")
	}
	choice := resp.Choices[0]

	if len(choice.Message.ToolCalls) > 0 {
		call := choice.Message.ToolCalls[0]
		payload := map[string]any{"tool_name": call.Function.Name}
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err == nil {
			payload["arguments"] = args
		}
		b, _ := json.Marshal(payload)
		return string(b), usage, nil
	}

	return choice.Message.Content, usage, nil
}

func toChatMessages(transcript []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, m := range transcript {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func toChatTools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
