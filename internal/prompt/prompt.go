// Package prompt builds the instruction payload sent to the generative
// backend for one flagged file.
package prompt

import (
	"path/filepath"
	"strings"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/profiles"
)

// Prompt is the remediation request for one file. Build it with Build; it is
// not modified afterwards.
type Prompt struct {
	FilePath        string
	Language        string
	OriginalContent string
	Instructions    []string
	Categories      []detect.Category
}

// fixDirectives is the remediation policy for each category.
var fixDirectives = map[detect.Category]string{
	detect.SQLInjection:     "SQL Injection → use parameterized queries; never build SQL from strings",
	detect.XSS:              "Cross-Site Scripting (XSS) → escape user input before it is written into HTML",
	detect.CommandInjection: "Command Injection → validate or sanitize input and avoid shell-interpreting execution (no exec with interpolated strings)",
	detect.SecretLike:       "Hardcoded secrets → read sensitive values from environment variables or configuration, never literals",
}

// Build returns the prompt for path. categories are the detected categories;
// when empty every fix directive is included. profile may be nil.
func Build(path, content string, categories []detect.Category, profile *profiles.Profile) Prompt {
	lang := Language(path)

	cats := categories
	if len(cats) == 0 {
		cats = detect.AllCategories
	}
	var instructions []string
	for _, c := range detect.AllCategories {
		if contains(cats, c) {
			instructions = append(instructions, fixDirectives[c])
		}
	}
	instructions = append(instructions,
		"Do NOT change business logic or observable behaviour",
		"Keep the code runnable",
	)
	instructions = append(instructions, profile.Directives()...)
	instructions = append(instructions,
		"Return ONLY valid "+lang+" source code for the whole file",
		"No explanations. No markdown. No code fences",
	)

	return Prompt{
		FilePath:        path,
		Language:        lang,
		OriginalContent: content,
		Instructions:    instructions,
		Categories:      append([]detect.Category(nil), categories...),
	}
}

// Text renders the prompt as sent to the backend.
func (p Prompt) Text() string {
	var sb strings.Builder
	sb.WriteString("You are a senior security engineer.\n\n")
	if len(p.Categories) > 0 {
		names := make([]string, len(p.Categories))
		for i, c := range p.Categories {
			names[i] = string(c)
		}
		sb.WriteString("Static analysis flagged this file for: " + strings.Join(names, ", ") + ".\n\n")
	}
	sb.WriteString("Refactor this code to fix:\n\n")
	for _, in := range p.Instructions {
		sb.WriteString("- " + in + "\n")
	}
	sb.WriteString("\nFile: " + p.FilePath + "\n\nCode:\n")
	sb.WriteString(p.OriginalContent)
	if !strings.HasSuffix(p.OriginalContent, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Language names the programming language of path from its extension.
func Language(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "Go"
	case ".js", ".mjs", ".cjs", ".jsx":
		return "JavaScript"
	case ".ts", ".tsx":
		return "TypeScript"
	case ".py":
		return "Python"
	case ".rb":
		return "Ruby"
	case ".java":
		return "Java"
	case ".php":
		return "PHP"
	case ".cs":
		return "C#"
	default:
		return "source"
	}
}

func contains(cats []detect.Category, c detect.Category) bool {
	for _, got := range cats {
		if got == c {
			return true
		}
	}
	return false
}
