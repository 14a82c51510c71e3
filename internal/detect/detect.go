// Package detect flags source files that look vulnerable to injection or that
// appear to handle secrets, using line-oriented regular expressions.
//
// The rules are heuristics, not a parser. They favour recall over precision:
// any identifier that names a secret and any ${...} interpolation marker will
// flag a file even when the code is safe.
package detect

import (
	"regexp"
	"sort"
	"strings"
)

// Category is a vulnerability class reported by Detect.
type Category string

const (
	SecretLike       Category = "SECRET_LIKE"
	SQLInjection     Category = "SQL_INJECTION"
	XSS              Category = "XSS"
	CommandInjection Category = "COMMAND_INJECTION"
)

// AllCategories lists every category in reporting order.
var AllCategories = []Category{SecretLike, SQLInjection, XSS, CommandInjection}

func (c Category) String() string { return string(c) }

// ParseCategory maps a user-supplied name ("sql", "SQL_INJECTION", "xss") to
// a Category.
func ParseCategory(raw string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "SECRET_LIKE", "SECRET", "SECRETS":
		return SecretLike, true
	case "SQL_INJECTION", "SQL", "SQLI":
		return SQLInjection, true
	case "XSS":
		return XSS, true
	case "COMMAND_INJECTION", "COMMAND", "CMD", "SHELL":
		return CommandInjection, true
	default:
		return "", false
	}
}

// Rule is a single heuristic pattern belonging to a category.
type Rule struct {
	ID       string
	Category Category
	Pattern  *regexp.Regexp
}

// Match records the first line on which a rule fired.
type Match struct {
	RuleID   string   `json:"rule_id"   yaml:"rule_id"`
	Category Category `json:"category"  yaml:"category"`
	Line     int      `json:"line"      yaml:"line"`
}

// Verdict is the detector's result for one file.
type Verdict struct {
	FilePath   string     `json:"file_path"  yaml:"file_path"`
	Categories []Category `json:"categories" yaml:"categories"`
	Matches    []Match    `json:"matches"    yaml:"matches"`
}

// Flagged reports whether any rule matched.
func (v Verdict) Flagged() bool { return len(v.Categories) > 0 }

// Has reports whether c is among the matched categories.
func (v Verdict) Has(c Category) bool {
	for _, got := range v.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// CategoryNames returns the matched categories as plain strings.
func (v Verdict) CategoryNames() []string {
	out := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		out[i] = string(c)
	}
	return out
}

// Rules is the fixed battery applied by Detect.
var Rules = []Rule{
	// Identifier fragments that conventionally name sensitive values. Matches
	// env-sourced values too.
	{ID: "secret-identifier", Category: SecretLike, Pattern: regexp.MustCompile(`(?i)secret|token|api[_-]?key|password`)},

	{ID: "sql-concat", Category: SQLInjection, Pattern: regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.*['"` + "`" + `]\s*\+`)},
	{ID: "sql-concat-leading", Category: SQLInjection, Pattern: regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.*\+\s*['"` + "`" + `]`)},
	{ID: "sql-interpolation", Category: SQLInjection, Pattern: regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.*\$\{[^}]*\}`)},

	{ID: "xss-send-template", Category: XSS, Pattern: regexp.MustCompile(`\bres\.(send|write|end)\s*\(\s*` + "`")},
	{ID: "xss-send-concat", Category: XSS, Pattern: regexp.MustCompile(`\bres\.(send|write|end)\s*\([^)]*['"]\s*\+`)},
	{ID: "xss-inner-html", Category: XSS, Pattern: regexp.MustCompile(`\.(inner|outer)HTML\s*=`)},
	{ID: "xss-document-write", Category: XSS, Pattern: regexp.MustCompile(`\bdocument\.write(ln)?\s*\(`)},

	{ID: "cmd-exec", Category: CommandInjection, Pattern: regexp.MustCompile(`\bexec(Sync)?\s*\(`)},
	{ID: "cmd-shell-option", Category: CommandInjection, Pattern: regexp.MustCompile(`\bshell\s*:\s*true\b`)},
	// Any template interpolation marker. Deliberately file-wide.
	{ID: "cmd-template-marker", Category: CommandInjection, Pattern: regexp.MustCompile(`\$\{[^}]*\}`)},
}

// Detect runs every rule against content.
func Detect(path, content string) Verdict {
	return DetectFamilies(path, content)
}

// DetectFamilies runs only the rules of the given categories. With no
// categories every rule runs.
func DetectFamilies(path, content string, families ...Category) Verdict {
	want := make(map[Category]bool, len(families))
	for _, c := range families {
		want[c] = true
	}

	lines := strings.Split(content, "\n")
	v := Verdict{FilePath: path}
	seen := make(map[Category]bool)
	for _, r := range Rules {
		if len(want) > 0 && !want[r.Category] {
			continue
		}
		line := firstMatchingLine(r.Pattern, lines)
		if line == 0 {
			continue
		}
		v.Matches = append(v.Matches, Match{RuleID: r.ID, Category: r.Category, Line: line})
		seen[r.Category] = true
	}
	for _, c := range AllCategories {
		if seen[c] {
			v.Categories = append(v.Categories, c)
		}
	}
	sort.SliceStable(v.Matches, func(i, j int) bool { return v.Matches[i].Line < v.Matches[j].Line })
	return v
}

// firstMatchingLine returns the 1-based line of the first match, or 0.
func firstMatchingLine(re *regexp.Regexp, lines []string) int {
	for i, l := range lines {
		if re.MatchString(l) {
			return i + 1
		}
	}
	return 0
}
