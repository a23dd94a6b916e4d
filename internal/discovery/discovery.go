// Package discovery resolves suite-file patterns to concrete paths.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/promptarena/promptarena/internal/promptdef"
)

// DefaultPattern is used when the caller names no files.
const DefaultPattern = "**/*.prompt.{yaml,yml}"

// Discover resolves a pattern argument to a sorted list of suite files.
// Three forms are accepted: an existing file path (returned verbatim),
// an existing directory (walked recursively for *.prompt.yaml files),
// and a glob pattern. Patterns containing "**" walk the prefix
// directory recursively; "{a,b}" alternation is expanded. An empty
// pattern means DefaultPattern in the current directory.
func Discover(pattern string) ([]string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultPattern
	}

	if info, err := os.Stat(pattern); err == nil {
		if !info.IsDir() {
			return []string{pattern}, nil
		}
		return walk(pattern, func(rel, name string) bool {
			return promptdef.IsSuiteFile(name)
		})
	}

	if idx := strings.Index(pattern, "**"); idx >= 0 {
		root := strings.TrimSuffix(pattern[:idx], "/")
		if root == "" {
			root = "."
		}
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("discovery: pattern root: %w", err)
		}
		tails := expandBraces(strings.TrimPrefix(pattern[idx:], "**/"))
		return walk(root, func(rel, name string) bool {
			return matchAny(tails, rel, name)
		})
	}

	var out []string
	for _, p := range expandBraces(pattern) {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("discovery: bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				out = append(out, m)
			}
		}
	}
	return dedupe(out), nil
}

// walk collects files under root matching the predicate, skipping
// hidden, vendor, and node_modules directories.
func walk(root string, match func(rel, name string) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules" || d.Name() == "vendor" {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if match(filepath.ToSlash(rel), d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walk %s: %w", root, err)
	}
	return dedupe(out), nil
}

// matchAny matches a file against expanded tail patterns. Tails with a
// separator are matched against the root-relative path; bare tails
// against the base name.
func matchAny(tails []string, rel, name string) bool {
	for _, t := range tails {
		candidate := name
		if strings.Contains(t, "/") {
			candidate = rel
		}
		if ok, err := filepath.Match(t, candidate); err == nil && ok {
			return true
		}
	}
	return false
}

// expandBraces expands "{a,b}" alternation groups in a pattern.
func expandBraces(pattern string) []string {
	open := strings.Index(pattern, "{")
	if open < 0 {
		return []string{pattern}
	}
	end := strings.Index(pattern[open:], "}")
	if end < 0 {
		return []string{pattern}
	}
	end += open

	var out []string
	for _, alt := range strings.Split(pattern[open+1:end], ",") {
		out = append(out, expandBraces(pattern[:open]+alt+pattern[end+1:])...)
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
