package llm

import "context"

// Provider sends one rendered request to a model backend. Conversation
// state lives in the request; the agentic loop that accumulates it is
// owned by the executor, not the provider.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind tags one content part of a message body.
type PartKind string

const (
	PartText       PartKind = "text"
	PartImage      PartKind = "image"
	PartFile       PartKind = "file"
	PartToolCall   PartKind = "tool-call"
	PartToolResult PartKind = "tool-result"
	PartReasoning  PartKind = "reasoning"
)

// Part is a tagged content variant. Only the fields for its Kind are
// set; adapters switch exhaustively on Kind and skip parts a backend
// cannot represent.
type Part struct {
	Kind PartKind

	// PartText, PartReasoning
	Text string

	// PartToolCall, PartToolResult
	CallID string

	// PartToolCall
	ToolName string
	Input    map[string]any

	// PartToolResult
	Result  string
	IsError bool

	// PartImage, PartFile
	MediaType string
	Data      []byte
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func ReasoningPart(text string) Part {
	return Part{Kind: PartReasoning, Text: text}
}

func ToolCallPart(callID, toolName string, input map[string]any) Part {
	return Part{Kind: PartToolCall, CallID: callID, ToolName: toolName, Input: input}
}

func ToolResultPart(callID, result string, isError bool) Part {
	return Part{Kind: PartToolResult, CallID: callID, Result: result, IsError: isError}
}

type Message struct {
	Role  Role
	Parts []Part
}

// UserText builds the single-part user message that starts a run.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// ToolSpec describes a tool exposed to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolSpec
	Temperature *float64
	MaxTokens   int

	// OutputSchema is the declared shape of the final answer. Backends
	// that support a JSON response mode may use it as a hint; it is
	// never required for correctness.
	OutputSchema map[string]any
}

// StopReason is the provider-neutral reason a response ended.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max-tokens"
	StopToolUse   StopReason = "tool-use"
	StopOther     StopReason = "other"
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

type Response struct {
	Parts      []Part
	StopReason StopReason
	Usage      Usage
}

// Text concatenates the text parts of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var out string
	for _, p := range r.Parts {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns the tool-call parts of the response in order.
func (r *Response) ToolCalls() []Part {
	if r == nil {
		return nil
	}
	var out []Part
	for _, p := range r.Parts {
		if p.Kind == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}
