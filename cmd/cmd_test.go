package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestScanTreeSkipsVendoredAndHiddenDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/db.js":               "db.query(\"SELECT * FROM u WHERE id = '\" + id + \"'\")\n",
		"src/clean.js":            "module.exports = 1\n",
		"node_modules/x/index.js": "const API_KEY = 'k'\n",
		".git/hooks/a.js":         "const token = 1\n",
		"notes.md":                "PASSWORD\n",
	})

	findings, err := scanTree(root, []string{".js"}, nil)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "src/db.js", findings[0].Path)
	assert.Equal(t, []string{"SQL_INJECTION"}, findings[0].Categories)
}

func TestScanTreeCategoryRestriction(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.js": "const password = process.env.PW\n",
		"b.js": "el.innerHTML = input\n",
	})

	findings, err := scanTree(root, []string{".js"}, []detect.Category{detect.SecretLike})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "a.js", findings[0].Path)
}

func TestParseCategories(t *testing.T) {
	cats, err := parseCategories([]string{"SECRET_LIKE", "XSS"})
	require.NoError(t, err)
	assert.Equal(t, []detect.Category{detect.SecretLike, detect.XSS}, cats)

	_, err = parseCategories([]string{"BUFFER_OVERFLOW"})
	assert.Error(t, err)
}

func TestPrintFindingsFormats(t *testing.T) {
	findings := []scanFinding{{Path: "a.js", Categories: []string{"XSS"}, Matches: []detect.Match{{RuleID: "xss-inner-html", Category: detect.XSS, Line: 3}}}}

	var buf bytes.Buffer
	require.NoError(t, printFindings(&buf, findings, "json"))
	assert.Contains(t, buf.String(), `"rule_id": "xss-inner-html"`)

	buf.Reset()
	require.NoError(t, printFindings(&buf, findings, "yaml"))
	assert.Contains(t, buf.String(), "path: a.js")

	buf.Reset()
	require.NoError(t, printFindings(&buf, nil, "json"))
	assert.Equal(t, "[]\n", buf.String())

	assert.Error(t, printFindings(&buf, findings, "xml"))
}

func TestReporterSummary(t *testing.T) {
	var buf bytes.Buffer
	r := &reporter{out: &buf}
	ctx := context.Background()

	res := pipeline.FileResult{Path: "a.js", Status: pipeline.StatusError, Err: errors.New("boom")}
	r.FileDone(ctx, "run", res)
	assert.Contains(t, buf.String(), "a.js")
	assert.Contains(t, buf.String(), "boom")

	start := time.Now()
	r.RunDone(ctx, pipeline.Outcome{
		StartedAt:        start,
		FinishedAt:       start.Add(time.Second),
		Results:          []pipeline.FileResult{{Path: "a.js", Status: pipeline.StatusFixed, Written: true}},
		AnyChangeApplied: true,
	})
	assert.Contains(t, buf.String(), "Files were rewritten")
	assert.Contains(t, buf.String(), "1 checked")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{".js", ".ts"}, splitList(" .js, ,.ts "))
	assert.Nil(t, splitList(""))
}

func TestExitErrorUnwraps(t *testing.T) {
	var err error = &exitError{code: 2}
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.code)
}
