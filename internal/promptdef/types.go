// Package promptdef holds the declarative shape of a prompt under test:
// the system template, the tools it may call, and the structured output
// it promises. Suites load from *.prompt.yaml files or are built in Go
// by SDK callers that attach real tool implementations.
package promptdef

import (
	"context"
	"strings"
	"time"
)

// ToolFunc executes one tool invocation with its decoded arguments.
type ToolFunc func(ctx context.Context, input map[string]any) (any, error)

// Tool carries a tool's wire description together with its
// implementation, so metadata travels with the function by value. A nil
// Execute is legal for declaration-only tools; invoking one is reported
// as a tool error, not a crash.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Execute     ToolFunc
}

// Prompt is a named system prompt plus its tool belt and optional
// output contract.
type Prompt struct {
	Name        string
	Description string
	System      string
	Variables   []Variable
	Tools       []Tool
	Output      *OutputSpec
}

// Variable defines a template variable and its default.
type Variable struct {
	Name     string
	Required bool
	Default  string
}

// Tool returns the named tool, if declared.
func (p *Prompt) Tool(name string) (*Tool, bool) {
	if p == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	for i := range p.Tools {
		if p.Tools[i].Name == name {
			return &p.Tools[i], true
		}
	}
	return nil, false
}

// File is one parsed *.prompt.yaml suite file: the prompt, the executor
// matrix to run it on, and the declared test cases.
type File struct {
	Path      string
	Prompt    *Prompt
	Executors []ExecutorSpec
	Cases     []CaseSpec
}

// ExecutorSpec is the declarative form of one executor configuration.
type ExecutorSpec struct {
	Model           string
	MaxSteps        int
	Timeout         time.Duration
	Temperature     *float64
	MaxOutputTokens int
}

// CaseSpec is the declarative form of one test case. HasExpect
// distinguishes an absent expect key from an explicit "expect: null".
type CaseSpec struct {
	Name      string
	Input     string
	Expect    any
	HasExpect bool
	Timeout   time.Duration
}
