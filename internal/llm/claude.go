package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/promptarena/promptarena/internal/claude"
)

type AnthropicProvider struct {
	client *claude.Client
}

func NewAnthropicProvider(apiKey string, baseURL string, model string) *AnthropicProvider {
	opts := make([]claude.Option, 0, 2)
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, claude.WithBaseURL(v))
	}
	if v := strings.TrimSpace(model); v != "" {
		opts = append(opts, claude.WithModel(v))
	}
	return &AnthropicProvider{
		client: claude.NewClient(strings.TrimSpace(apiKey), opts...),
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: anthropic: nil client")
	}
	cReq, err := toClaudeRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Complete(ctx, cReq)
	if err != nil {
		return nil, err
	}
	return fromClaudeResponse(resp), nil
}

func toClaudeRequest(req *Request) (*claude.Request, error) {
	if req == nil {
		return nil, errors.New("llm: anthropic: nil request")
	}

	msgs := make([]claude.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks := toClaudeBlocks(m.Parts)
		if len(blocks) == 0 {
			continue
		}
		// Tool results travel in user turns on this API; any role the
		// backend does not know collapses to user.
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, claude.Message{
			Role:   role,
			Blocks: blocks,
		})
	}

	tools := make([]claude.ToolDefinition, 0, len(req.Tools))
	for _, t := range req.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		tools = append(tools, claude.ToolDefinition{
			Name:        name,
			Description: strings.TrimSpace(t.Description),
			InputSchema: schema,
		})
	}

	return &claude.Request{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Tools:       tools,
	}, nil
}

func toClaudeBlocks(parts []Part) []claude.ContentBlock {
	out := make([]claude.ContentBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case PartText:
			out = append(out, claude.ContentBlock{Type: "text", Text: p.Text})
		case PartToolCall:
			out = append(out, claude.ContentBlock{
				Type:  "tool_use",
				ID:    p.CallID,
				Name:  p.ToolName,
				Input: p.Input,
			})
		case PartToolResult:
			out = append(out, claude.ContentBlock{
				Type:      "tool_result",
				ToolUseID: p.CallID,
				Content:   p.Result,
				IsError:   p.IsError,
			})
		case PartReasoning:
			// Response-only; not echoed back.
		case PartImage, PartFile:
			// Not representable on the messages path we use.
		}
	}
	return out
}

func fromClaudeResponse(resp *claude.Response) *Response {
	if resp == nil {
		return nil
	}

	out := &Response{
		StopReason: normalizeClaudeStop(resp.StopReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}

	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			out.Parts = append(out.Parts, TextPart(b.Text))
		case "tool_use":
			out.Parts = append(out.Parts, ToolCallPart(b.ID, b.Name, b.Input))
		case "thinking":
			out.Parts = append(out.Parts, ReasoningPart(b.Text))
		}
	}

	return out
}

func normalizeClaudeStop(reason string) StopReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return StopEnd
	case "max_tokens":
		return StopMaxTokens
	case "tool_use":
		return StopToolUse
	default:
		return StopOther
	}
}
