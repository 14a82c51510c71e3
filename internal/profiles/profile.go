// Package profiles manages remediation policy profiles: named sets of extra
// instructions and category focus that shape the remediation prompt.
package profiles

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
)

//go:embed defaults/*.md
var defaultsFS embed.FS

// Profile is a parsed remediation policy profile.
type Profile struct {
	// Name is the machine-readable identifier (matches the filename without .md).
	Name        string `yaml:"name"`
	Version     int    `yaml:"version"`
	Description string `yaml:"description"`
	// Categories restricts which detector categories are remediated. Empty = all.
	Categories []string `yaml:"categories"`
	Tags       []string `yaml:"tags"`
	// Body is the markdown content after the YAML frontmatter. Each list item
	// becomes one extra prompt directive.
	Body string `yaml:"-"`
	// Bundled is true if this profile was loaded from the embedded defaults.
	Bundled bool `yaml:"-"`
}

// Load reads a profile by name from the user profile directory (falling back
// to bundled defaults). An empty name returns nil, nil.
func Load(name, profilesDir string) (*Profile, error) {
	if name == "" {
		return nil, nil
	}

	if profilesDir != "" {
		path := filepath.Join(profilesDir, name+".md")
		if data, err := os.ReadFile(path); err == nil {
			p, err := parse(data)
			if err != nil {
				return nil, fmt.Errorf("profiles: parse %q: %w", path, err)
			}
			if p.Name == "" {
				p.Name = name
			}
			return p, p.validate()
		}
	}

	data, err := defaultsFS.ReadFile("defaults/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("profiles: profile %q not found", name)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profiles: parse bundled %q: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	p.Bundled = true
	return p, p.validate()
}

// List returns all available profiles sorted by name. User profiles shadow
// bundled ones of the same name.
func List(profilesDir string) ([]Profile, error) {
	byName := make(map[string]Profile)

	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("profiles: reading embedded defaults: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := defaultsFS.ReadFile("defaults/" + entry.Name())
		if err != nil {
			continue
		}
		p, err := parse(data)
		if err != nil {
			slog.Warn("profiles: skipping malformed bundled profile", "file", entry.Name(), "error", err)
			continue
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(entry.Name(), ".md")
		}
		p.Bundled = true
		byName[p.Name] = *p
	}

	if profilesDir != "" {
		_ = filepath.WalkDir(profilesDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			p, err := parse(data)
			if err != nil {
				slog.Warn("profiles: skipping malformed user profile", "file", path, "error", err)
				return nil
			}
			if p.Name == "" {
				p.Name = strings.TrimSuffix(d.Name(), ".md")
			}
			byName[p.Name] = *p
			return nil
		})
	}

	out := make([]Profile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Focus returns the detector categories this profile remediates. A nil
// profile or an empty list means every category.
func (p *Profile) Focus() []detect.Category {
	if p == nil || len(p.Categories) == 0 {
		return nil
	}
	out := make([]detect.Category, 0, len(p.Categories))
	for _, raw := range p.Categories {
		if c, ok := detect.ParseCategory(raw); ok {
			out = append(out, c)
		}
	}
	return out
}

// Directives returns the list items of the profile body, one per directive.
// Lines that are not list items are ignored.
func (p *Profile) Directives() []string {
	if p == nil {
		return nil
	}
	var out []string
	sc := bufio.NewScanner(strings.NewReader(p.Body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		for _, bullet := range []string{"- ", "* "} {
			if strings.HasPrefix(line, bullet) {
				if d := strings.TrimSpace(strings.TrimPrefix(line, bullet)); d != "" {
					out = append(out, d)
				}
				break
			}
		}
	}
	return out
}

func (p *Profile) validate() error {
	for _, raw := range p.Categories {
		if _, ok := detect.ParseCategory(raw); !ok {
			return fmt.Errorf("profiles: %q lists unknown category %q", p.Name, raw)
		}
	}
	return nil
}

// parse extracts YAML frontmatter and the markdown body from a profile file.
func parse(data []byte) (*Profile, error) {
	const delim = "---"

	data = bytes.TrimLeft(data, " \t\n\r")

	if !bytes.HasPrefix(data, []byte(delim)) {
		// No frontmatter: the whole file is the body.
		return &Profile{Body: strings.TrimSpace(string(data))}, nil
	}

	rest := bytes.TrimPrefix(data, []byte(delim))
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, fmt.Errorf("unterminated YAML frontmatter (missing closing ---)")
	}

	frontmatter := rest[:idx]
	body := strings.TrimSpace(string(rest[idx+len("\n"+delim):]))

	var p Profile
	if err := yaml.Unmarshal(frontmatter, &p); err != nil {
		return nil, fmt.Errorf("invalid YAML frontmatter: %w", err)
	}
	p.Body = body
	return &p, nil
}
