package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/changeset"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
)

var (
	scanCategories []string
	scanOutputFmt  string
	scanExtensions []string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Report flagged source files without calling a model",
	Long: `Walks a directory tree (skipping node_modules and dot-directories), runs
the detector on every source file and prints the flagged ones. Exits 1 when
anything is flagged, so it can gate a pipeline on its own.

Examples:
  ctrlscan-autofix scan
  ctrlscan-autofix scan ./src --categories SECRET_LIKE
  ctrlscan-autofix scan --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanCategories, "categories", nil,
		"Restrict detection to these categories (SECRET_LIKE,SQL_INJECTION,XSS,COMMAND_INJECTION)")
	scanCmd.Flags().StringVar(&scanOutputFmt, "output", "table", "Output format: table|json|yaml")
	scanCmd.Flags().StringSliceVar(&scanExtensions, "ext", nil, "Source extensions to inspect (overrides diff.extensions)")
}

// scanFinding is one flagged file in a scan report.
type scanFinding struct {
	Path       string         `json:"path"       yaml:"path"`
	Categories []string       `json:"categories" yaml:"categories"`
	Matches    []detect.Match `json:"matches"    yaml:"matches"`
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	exts := cfg.Diff.Extensions
	if len(scanExtensions) > 0 {
		exts = scanExtensions
	}

	cats, err := parseCategories(scanCategories)
	if err != nil {
		return err
	}

	findings, err := scanTree(root, exts, cats)
	if err != nil {
		return err
	}
	if err := printFindings(cmd.OutOrStdout(), findings, scanOutputFmt); err != nil {
		return err
	}
	if len(findings) > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func parseCategories(raw []string) ([]detect.Category, error) {
	var cats []detect.Category
	for _, r := range raw {
		c, ok := detect.ParseCategory(r)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", r)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// scanTree runs the detector over every source file under root.
func scanTree(root string, exts []string, cats []detect.Category) ([]scanFinding, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	var findings []scanFinding
	for _, rel := range changeset.Filter(paths, exts, nil) {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		v := detect.DetectFamilies(rel, string(data), cats...)
		if !v.Flagged() {
			continue
		}
		findings = append(findings, scanFinding{Path: rel, Categories: v.CategoryNames(), Matches: v.Matches})
	}
	return findings, nil
}

func printFindings(w io.Writer, findings []scanFinding, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if findings == nil {
			findings = []scanFinding{}
		}
		return enc.Encode(findings)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(findings)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q (table|json|yaml)", format)
	}

	if len(findings) == 0 {
		fmt.Fprintln(w, successStyle.Render("No flagged files."))
		return nil
	}
	for _, f := range findings {
		fmt.Fprintf(w, "%s  %s\n", warnStyle.Render("⚠ "+f.Path), strings.Join(f.Categories, ", "))
		for _, m := range f.Matches {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("    line %-5d %s", m.Line, m.RuleID)))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d flagged file(s)", len(findings))))
	return nil
}
