package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/sanitize"
)

// OllamaBackend implements Backend using a local or reachable Ollama server.
// Configure with: ai.provider = "ollama", ai.ollama_url = "http://localhost:11434"
type OllamaBackend struct {
	baseURL string
	model   string
	http    *poster
	debug   bool
	prompts bool
}

// NewOllama creates an OllamaBackend from cfg.
func NewOllama(cfg config.AIConfig) *OllamaBackend {
	base := cfg.OllamaURL
	if base == "" {
		base = "http://localhost:11434"
	}
	model := cfg.OllamaModel
	if model == "" {
		model = "llama3"
	}
	o := &OllamaBackend{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		http:    newPoster("ollama", cfg.Timeout, cfg.MaxAttempts, cfg.RetryBackoff),
	}
	o.debug, o.prompts = parseAIDebugEnv()
	return o
}

func (o *OllamaBackend) Name() string { return "ollama" }

func (o *OllamaBackend) IsAvailable(ctx context.Context) bool {
	return o.http.get(ctx, o.baseURL+"/api/tags")
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete posts a non-streaming /api/generate request and returns the
// response field.
func (o *OllamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload := ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	}
	if o.debug {
		slog.Info("Ollama request",
			"model", o.model,
			"prompt_chars", len(prompt),
			"base_url", o.baseURL,
		)
	}
	if o.prompts {
		slog.Info("Ollama prompt body", "prompt", prompt)
	}

	data, err := o.http.postJSON(ctx, o.baseURL+"/api/generate", payload)
	if err != nil {
		return "", err
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return "", fmt.Errorf("parsing Ollama response: %w", err)
	}
	if o.debug {
		slog.Info("Ollama response",
			"completion_chars", len(apiResp.Response),
			"done", apiResp.Done,
			"fenced", sanitize.HasFences(apiResp.Response),
		)
	}
	if strings.TrimSpace(apiResp.Response) == "" {
		return "", ErrNoResult
	}
	return apiResp.Response, nil
}
