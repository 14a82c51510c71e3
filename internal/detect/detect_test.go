package detect

import (
	"strings"
	"testing"
)

func TestDetect_SecretIdentifiersAlwaysFlag(t *testing.T) {
	cases := []string{
		`const t = "mysecret";`,
		`const apiToken = process.env.API_TOKEN;`,
		`const PASSWORD = process.env.DB_PASSWORD || "";`,
		`headers["x-api-key"] = cfg.apiKey;`,
		`// rotate the Api_Key every month`,
	}
	for _, content := range cases {
		v := Detect("a.js", content)
		if !v.Has(SecretLike) {
			t.Fatalf("expected SECRET_LIKE for %q, got %v", content, v.Categories)
		}
	}
}

func TestDetect_CleanContentIsNotFlagged(t *testing.T) {
	content := strings.Join([]string{
		`const express = require("express");`,
		`function add(a, b) {`,
		`  return a + b;`,
		`}`,
		`app.get("/health", (req, res) => res.json({ ok: true }));`,
	}, "\n")
	v := Detect("clean.js", content)
	if v.Flagged() {
		t.Fatalf("expected clean content to pass, got %v (%+v)", v.Categories, v.Matches)
	}
}

func TestDetect_Families(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Category
	}{
		{"sql concat", `db.query("SELECT * FROM users WHERE name = '" + name + "'")`, SQLInjection},
		{"sql interpolation", "db.query(`DELETE FROM users WHERE id = ${id}`)", SQLInjection},
		{"xss template send", "res.send(`<h1>Hello ${name}</h1>`)", XSS},
		{"xss concat send", `res.send("<p>" + comment + "</p>")`, XSS},
		{"xss innerHTML", `el.innerHTML = userInput;`, XSS},
		{"cmd exec", `exec("ping -c 1 " + host, cb)`, CommandInjection},
		{"cmd shell option", `spawn(cmd, args, { shell: true })`, CommandInjection},
		{"template marker anywhere", "const greeting = `hi ${user}`;", CommandInjection},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Detect("x.js", tc.content)
			if !v.Has(tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, v.Categories)
			}
		})
	}
}

func TestDetect_SecretAndSQLScenario(t *testing.T) {
	content := "const t = \"mysecret\";\nconst q = `SELECT * FROM x WHERE y = '${v}'`;\n"
	v := Detect("app.js", content)
	if !v.Has(SecretLike) || !v.Has(SQLInjection) {
		t.Fatalf("expected SECRET_LIKE and SQL_INJECTION, got %v", v.Categories)
	}
	// The interpolation marker also counts as command injection.
	if !v.Has(CommandInjection) {
		t.Fatalf("expected broad template-marker rule to fire, got %v", v.Categories)
	}
	for _, m := range v.Matches {
		if m.Category == SQLInjection && m.Line != 2 {
			t.Fatalf("expected SQL match on line 2, got %d", m.Line)
		}
	}
}

func TestDetect_CategoryOrderIsStable(t *testing.T) {
	content := "exec(`rm ${f}`)\nconst password = 1;\n"
	v := Detect("x.js", content)
	if len(v.Categories) != 2 || v.Categories[0] != SecretLike || v.Categories[1] != CommandInjection {
		t.Fatalf("unexpected category order: %v", v.Categories)
	}
	if v.Matches[0].Line != 1 {
		t.Fatalf("expected matches sorted by line, got %+v", v.Matches)
	}
}

func TestDetectFamilies_RestrictsRules(t *testing.T) {
	content := "const token = 1;\nexec(cmd);\n"
	v := DetectFamilies("x.js", content, SecretLike)
	if len(v.Categories) != 1 || v.Categories[0] != SecretLike {
		t.Fatalf("expected only SECRET_LIKE, got %v", v.Categories)
	}
}

func TestDetect_DoesNotMutateContent(t *testing.T) {
	content := "const secret = `${x}`;"
	before := strings.Clone(content)
	_ = Detect("x.js", content)
	if content != before {
		t.Fatal("content changed")
	}
}

func TestParseCategory(t *testing.T) {
	for raw, want := range map[string]Category{
		"sql":               SQLInjection,
		"SECRET_LIKE":       SecretLike,
		"command-injection": CommandInjection,
		" xss ":             XSS,
	} {
		got, ok := ParseCategory(raw)
		if !ok || got != want {
			t.Fatalf("ParseCategory(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseCategory("csrf"); ok {
		t.Fatal("expected unknown category to be rejected")
	}
}
