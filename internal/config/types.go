package config

import "time"

// Config is the root configuration structure for ctrlscan-autofix.
// Serialised to ~/.ctrlscan-autofix/config.json.
type Config struct {
	AI       AIConfig       `mapstructure:"ai"       json:"ai"`
	Diff     DiffConfig     `mapstructure:"diff"     json:"diff"`
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	History  HistoryConfig  `mapstructure:"history"  json:"history"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
}

// AIConfig controls the generative backend used to produce remediations.
type AIConfig struct {
	// Provider is "gemini" (default) or "ollama" ("local" is an alias).
	Provider string `mapstructure:"provider" json:"provider"`
	// GeminiKey authenticates against the hosted backend. Required when
	// Provider is "gemini".
	GeminiKey   string `mapstructure:"gemini_api_key" json:"gemini_api_key"`
	GeminiModel string `mapstructure:"gemini_model"   json:"gemini_model"`
	// GeminiURL overrides the hosted endpoint (proxies, tests).
	GeminiURL   string `mapstructure:"gemini_url"   json:"gemini_url"`
	OllamaURL   string `mapstructure:"ollama_url"   json:"ollama_url"`
	OllamaModel string `mapstructure:"ollama_model" json:"ollama_model"`
	// Timeout bounds a single backend request.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// MaxAttempts is the number of tries for retryable failures (429/5xx,
	// transport errors). 1 disables retries.
	MaxAttempts  int           `mapstructure:"max_attempts"  json:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	// BreakerFailures is the number of consecutive backend failures after
	// which the remaining files fail fast. 0 disables the breaker.
	BreakerFailures int `mapstructure:"breaker_failures" json:"breaker_failures"`
}

// DiffConfig controls change-set discovery.
type DiffConfig struct {
	// BaseRef is the branch the proposed update is compared against.
	BaseRef string `mapstructure:"base_ref" json:"base_ref"`
	// Remote is tried first when resolving BaseRef (refs/remotes/<remote>/<base>).
	Remote string `mapstructure:"remote" json:"remote"`
	// Extensions lists the source-file suffixes that are inspected.
	Extensions []string `mapstructure:"extensions" json:"extensions"`
	// ExcludeDirs are repo-relative directories never inspected, including the
	// directory holding this pipeline's own sources.
	ExcludeDirs []string `mapstructure:"exclude_dirs" json:"exclude_dirs"`
}

// PipelineConfig controls run behaviour and exit-code mapping.
type PipelineConfig struct {
	// DryRun runs detection and generation but never writes files.
	DryRun bool `mapstructure:"dry_run" json:"dry_run"`
	// FailOnError makes a run with per-file errors and no applied fixes exit
	// with ExitErrors instead of ExitClean.
	FailOnError bool `mapstructure:"fail_on_error" json:"fail_on_error"`
	// Profile names a remediation policy profile (see internal/profiles).
	Profile     string `mapstructure:"profile"      json:"profile"`
	ProfilesDir string `mapstructure:"profiles_dir" json:"profiles_dir"`
}

// HistoryConfig controls the optional run-history store.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Driver is "sqlite" (default), "mysql" or "postgres".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path" json:"path"`
	// DSN is used by the mysql and postgres drivers.
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// NotifyConfig configures where a summary is sent after a run that applied
// at least one remediation.
type NotifyConfig struct {
	Slack   SlackNotifyConfig   `mapstructure:"slack"   json:"slack"`
	Webhook WebhookNotifyConfig `mapstructure:"webhook" json:"webhook"`
	GitHub  GitHubNotifyConfig  `mapstructure:"github"  json:"github"`
	GitLab  GitLabNotifyConfig  `mapstructure:"gitlab"  json:"gitlab"`
}

// SlackNotifyConfig holds the Slack incoming-webhook URL.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// WebhookNotifyConfig posts a JSON event to URL, signed with Secret when set.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"`
}

// GitHubNotifyConfig comments on the pull request that triggered the run.
type GitHubNotifyConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Repository is "owner/name" (GITHUB_REPOSITORY in Actions).
	Repository string `mapstructure:"repository" json:"repository"`
	PRNumber   int    `mapstructure:"pr_number"  json:"pr_number"`
	// Host allows GitHub Enterprise (e.g. github.mycompany.com).
	Host string `mapstructure:"host" json:"host"`
}

// GitLabNotifyConfig adds a note to the merge request that triggered the run.
type GitLabNotifyConfig struct {
	Token     string `mapstructure:"token"      json:"token"`
	Host      string `mapstructure:"host"       json:"host"`
	ProjectID string `mapstructure:"project_id" json:"project_id"`
	MRIID     int    `mapstructure:"mr_iid"     json:"mr_iid"`
}
