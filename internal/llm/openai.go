package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

func NewOpenAIProvider(apiKey string, baseURL string, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = "gpt-4o"
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: m,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: openai: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: openai: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: openai: nil request")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	r := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  toOpenAIMessages(req),
		MaxTokens: clampMaxTokens(req.MaxTokens),
	}
	if req.Temperature != nil {
		r.Temperature = float32(*req.Temperature)
	}
	tools := toOpenAITools(req.Tools)
	if len(tools) > 0 {
		r.Tools = tools
		r.ToolChoice = "auto"
	}
	if req.OutputSchema != nil {
		r.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: openai: empty choices")
	}

	return fromOpenAIChoice(&resp, &resp.Choices[0]), nil
}

func toOpenAIMessages(req *Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleTool:
			// One tool message per result part; this API addresses
			// results by tool call id, not by position.
			for _, part := range m.Parts {
				if part.Kind != PartToolResult {
					continue
				}
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    part.Result,
					ToolCallID: part.CallID,
				})
			}
		case RoleAssistant:
			msgs = append(msgs, assistantToOpenAI(m))
		case RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: partsText(m.Parts),
			})
		default:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: partsText(m.Parts),
			})
		}
	}
	return msgs
}

func assistantToOpenAI(m Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: partsText(m.Parts),
	}
	for _, part := range m.Parts {
		if part.Kind != PartToolCall {
			continue
		}
		args := "{}"
		if part.Input != nil {
			if data, err := json.Marshal(part.Input); err == nil {
				args = string(data)
			}
		}
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   part.CallID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      part.ToolName,
				Arguments: args,
			},
		})
	}
	return out
}

func partsText(parts []Part) string {
	var sb strings.Builder
	for _, p := range parts {
		switch p.Kind {
		case PartText:
			sb.WriteString(p.Text)
		case PartReasoning, PartToolCall, PartToolResult, PartImage, PartFile:
			// Carried elsewhere or dropped for this backend.
		}
	}
	return sb.String()
}

func fromOpenAIChoice(resp *openai.ChatCompletionResponse, choice *openai.ChatCompletionChoice) *Response {
	out := &Response{
		StopReason: normalizeOpenAIFinish(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if out.Usage.TotalTokens == 0 {
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}

	msg := choice.Message
	if strings.TrimSpace(msg.Content) != "" {
		out.Parts = append(out.Parts, TextPart(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		out.Parts = append(out.Parts, ToolCallPart(
			strings.TrimSpace(tc.ID),
			strings.TrimSpace(tc.Function.Name),
			parseToolArguments(tc.Function.Arguments),
		))
	}
	return out
}

func normalizeOpenAIFinish(reason openai.FinishReason) StopReason {
	switch reason {
	case openai.FinishReasonStop:
		return StopEnd
	case openai.FinishReasonLength:
		return StopMaxTokens
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return StopToolUse
	default:
		return StopOther
	}
}

func clampMaxTokens(n int) int {
	if n <= 0 {
		return 0
	}
	return n
}

func toOpenAITools(in []ToolSpec) []openai.Tool {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(in))
	for _, t := range in {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: strings.TrimSpace(t.Description),
				Parameters:  schema,
			},
		})
	}
	return out
}

func parseToolArguments(args string) map[string]any {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return map[string]any{"_raw": args}
	}
	return out
}
