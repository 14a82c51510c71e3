package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/sanitize"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com"

// GeminiBackend implements Backend using the hosted generateContent API.
// Configure with: ai.provider = "gemini", GEMINI_API_KEY, GEMINI_MODEL.
type GeminiBackend struct {
	baseURL string
	model   string
	apiKey  string
	http    *poster
	debug   bool
	prompts bool
}

// NewGemini creates a GeminiBackend from cfg. The caller checks the API key.
func NewGemini(cfg config.AIConfig) *GeminiBackend {
	base := cfg.GeminiURL
	if base == "" {
		base = defaultGeminiURL
	}
	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.5-flash"
	}
	g := &GeminiBackend{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		apiKey:  cfg.GeminiKey,
		http:    newPoster("gemini", cfg.Timeout, cfg.MaxAttempts, cfg.RetryBackoff),
	}
	g.debug, g.prompts = parseAIDebugEnv()
	g.http.redact = g.redactKey
	return g
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) IsAvailable(ctx context.Context) bool {
	return g.http.get(ctx, g.modelURL("")+"?key="+url.QueryEscape(g.apiKey))
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Complete posts prompt as the only content of a generateContent request and
// concatenates the text parts of the first candidate.
func (g *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if g.debug {
		slog.Info("Gemini request", "model", g.model, "prompt_chars", len(prompt), "base_url", g.baseURL)
	}
	if g.prompts {
		slog.Info("Gemini prompt body", "prompt", prompt)
	}

	endpoint := g.modelURL(":generateContent") + "?key=" + url.QueryEscape(g.apiKey)
	data, err := g.http.postJSON(ctx, endpoint, payload)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			slog.Warn("Gemini blocked the prompt", "reason", resp.PromptFeedback.BlockReason)
		}
		return "", ErrNoResult
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if g.debug {
		slog.Info("Gemini response",
			"completion_chars", sb.Len(),
			"finish_reason", resp.Candidates[0].FinishReason,
			"fenced", sanitize.HasFences(sb.String()),
		)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrNoResult
	}
	return sb.String(), nil
}

func (g *GeminiBackend) modelURL(suffix string) string {
	return g.baseURL + "/v1beta/models/" + url.PathEscape(g.model) + suffix
}

func (g *GeminiBackend) redactKey(s string) string {
	if g.apiKey == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(g.apiKey), "***")
	return strings.ReplaceAll(s, g.apiKey, "***")
}
