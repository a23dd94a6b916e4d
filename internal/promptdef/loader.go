package promptdef

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptarena/promptarena/internal/matcher"
)

// fileDoc is the raw YAML shape of a *.prompt.yaml suite file.
type fileDoc struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	System      string        `yaml:"system"`
	Variables   []varDoc      `yaml:"variables,omitempty"`
	Tools       []toolDoc     `yaml:"tools,omitempty"`
	Output      *outputDoc    `yaml:"output,omitempty"`
	Executors   []executorDoc `yaml:"executors,omitempty"`
	Tests       []caseDoc     `yaml:"tests"`
}

type varDoc struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required,omitempty"`
	Default  string `yaml:"default,omitempty"`
}

type toolDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	InputSchema map[string]any `yaml:"input_schema,omitempty"`
	Mocks       []mockDoc      `yaml:"mock,omitempty"`
}

type mockDoc struct {
	Match    map[string]any `yaml:"match,omitempty"`
	Response any            `yaml:"response,omitempty"`
	Error    string         `yaml:"error,omitempty"`
}

type outputDoc struct {
	Schema map[string]any `yaml:"schema"`
}

type executorDoc struct {
	Model           string        `yaml:"model"`
	MaxSteps        int           `yaml:"max_steps,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	Temperature     *float64      `yaml:"temperature,omitempty"`
	MaxOutputTokens int           `yaml:"max_output_tokens,omitempty"`
}

type caseDoc struct {
	Name    string        `yaml:"name,omitempty"`
	Input   string        `yaml:"input"`
	Expect  yaml.Node     `yaml:"expect"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// IsSuiteFile reports whether name looks like a suite file.
func IsSuiteFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".prompt.yaml") || strings.HasSuffix(lower, ".prompt.yml")
}

// LoadFile loads and validates one suite file.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("promptdef: read %q: %w", path, err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("promptdef: parse %q: %w", path, err)
	}
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("promptdef: validate %q: %w", path, err)
	}

	f, err := doc.build(path)
	if err != nil {
		return nil, fmt.Errorf("promptdef: validate %q: %w", path, err)
	}
	return f, nil
}

// LoadDir loads and validates all suite files directly under dir,
// sorted by name.
func LoadDir(dir string) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("promptdef: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !IsSuiteFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	out := make([]*File, 0, len(paths))
	for _, path := range paths {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (d *fileDoc) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("prompt: missing name")
	}
	if strings.TrimSpace(d.System) == "" {
		return fmt.Errorf("prompt: missing system prompt")
	}
	if len(d.Tests) == 0 {
		return fmt.Errorf("prompt: no tests")
	}

	seenTools := make(map[string]struct{}, len(d.Tools))
	for i, t := range d.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("tools[%d]: missing name", i)
		}
		if _, ok := seenTools[name]; ok {
			return fmt.Errorf("tools[%d] (%s): duplicate name", i, name)
		}
		seenTools[name] = struct{}{}
	}

	for i, e := range d.Executors {
		if strings.TrimSpace(e.Model) == "" {
			return fmt.Errorf("executors[%d]: missing model", i)
		}
		if e.MaxSteps < 0 {
			return fmt.Errorf("executors[%d] (%s): max_steps must be >= 0", i, e.Model)
		}
		if e.Timeout < 0 {
			return fmt.Errorf("executors[%d] (%s): timeout must be >= 0", i, e.Model)
		}
		if e.MaxOutputTokens < 0 {
			return fmt.Errorf("executors[%d] (%s): max_output_tokens must be >= 0", i, e.Model)
		}
	}

	seenNames := make(map[string]struct{}, len(d.Tests))
	for i, c := range d.Tests {
		name := strings.TrimSpace(c.Name)
		if name != "" {
			if _, ok := seenNames[name]; ok {
				return fmt.Errorf("%s: duplicate name", caseLabel(i, name))
			}
			seenNames[name] = struct{}{}
		}
		if strings.TrimSpace(c.Input) == "" {
			return fmt.Errorf("%s: missing input", caseLabel(i, name))
		}
		if c.Timeout < 0 {
			return fmt.Errorf("%s: timeout must be >= 0", caseLabel(i, name))
		}
	}
	return nil
}

func (d *fileDoc) build(path string) (*File, error) {
	p := &Prompt{
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		System:      d.System,
	}
	for _, v := range d.Variables {
		p.Variables = append(p.Variables, Variable{
			Name:     strings.TrimSpace(v.Name),
			Required: v.Required,
			Default:  v.Default,
		})
	}
	for _, t := range d.Tools {
		tool := Tool{
			Name:        strings.TrimSpace(t.Name),
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
		if len(t.Mocks) > 0 {
			tool.Execute = mockToolFunc(tool.Name, t.Mocks)
		}
		p.Tools = append(p.Tools, tool)
	}
	if d.Output != nil && len(d.Output.Schema) > 0 {
		p.Output = &OutputSpec{Schema: d.Output.Schema}
	}

	f := &File{Path: path, Prompt: p}
	for _, e := range d.Executors {
		f.Executors = append(f.Executors, ExecutorSpec{
			Model:           strings.TrimSpace(e.Model),
			MaxSteps:        e.MaxSteps,
			Timeout:         e.Timeout,
			Temperature:     e.Temperature,
			MaxOutputTokens: e.MaxOutputTokens,
		})
	}
	for i, c := range d.Tests {
		spec := CaseSpec{
			Name:    strings.TrimSpace(c.Name),
			Input:   c.Input,
			Timeout: c.Timeout,
		}
		if !c.Expect.IsZero() {
			spec.HasExpect = true
			var expect any
			if err := c.Expect.Decode(&expect); err != nil {
				return nil, fmt.Errorf("%s: decode expect: %w", caseLabel(i, spec.Name), err)
			}
			spec.Expect = expect
		}
		f.Cases = append(f.Cases, spec)
	}
	return f, nil
}

// mockToolFunc builds a tool implementation from the declared mock
// table. The first entry whose match pattern subset-matches the call
// arguments wins; entries without a pattern match any call.
func mockToolFunc(name string, mocks []mockDoc) ToolFunc {
	table := make([]mockDoc, len(mocks))
	copy(table, mocks)
	return func(_ context.Context, input map[string]any) (any, error) {
		for _, m := range table {
			if len(m.Match) > 0 && !matcher.MatchPartial(input, m.Match) {
				continue
			}
			if m.Error != "" {
				return nil, errors.New(m.Error)
			}
			return m.Response, nil
		}
		return nil, fmt.Errorf("no mock matched call to %q", name)
	}
}

func caseLabel(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("tests[%d]", i)
	}
	return fmt.Sprintf("tests[%d] (%s)", i, name)
}
