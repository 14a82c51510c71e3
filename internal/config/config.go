package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".ctrlscan-autofix"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".ctrlscan-autofix/history.db"
	DefaultProfileDir = ".ctrlscan-autofix/profiles"

	// EnvPrefix prefixes every nested key, e.g. AUTOFIX_PIPELINE_DRY_RUN.
	EnvPrefix = "AUTOFIX"
)

// legacyEnv maps the environment names used by the CI workflows this tool
// replaces onto config keys. AUTOFIX_* names still win when both are set.
var legacyEnv = map[string][]string{
	"ai.provider":              {"AI_PROVIDER"},
	"ai.gemini_api_key":        {"GEMINI_API_KEY"},
	"ai.gemini_model":          {"GEMINI_MODEL"},
	"ai.ollama_model":          {"OLLAMA_MODEL"},
	"ai.ollama_url":            {"OLLAMA_URL", "OLLAMA_HOST"},
	"diff.base_ref":            {"GITHUB_BASE_REF", "CI_MERGE_REQUEST_TARGET_BRANCH_NAME"},
	"notify.github.token":      {"GITHUB_TOKEN"},
	"notify.github.repository": {"GITHUB_REPOSITORY"},
	"notify.gitlab.token":      {"GITLAB_TOKEN"},
	"notify.gitlab.project_id": {"CI_PROJECT_ID"},
	"notify.gitlab.mr_iid":     {"CI_MERGE_REQUEST_IID"},
}

// Load reads the config file (if any), applies defaults and environment
// overrides and returns a populated Config. configPath overrides the
// default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config file: defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	normalise(&cfg)
	expandPaths(&cfg, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	p, err := ConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(p, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Redacted returns a copy of cfg with every credential masked.
func Redacted(cfg *Config) Config {
	out := *cfg
	if out.AI.GeminiKey != "" {
		out.AI.GeminiKey = "AIza***"
	}
	if out.Notify.Webhook.Secret != "" {
		out.Notify.Webhook.Secret = "***"
	}
	if out.Notify.Slack.WebhookURL != "" {
		out.Notify.Slack.WebhookURL = "https://hooks.slack.com/***"
	}
	if out.Notify.GitHub.Token != "" {
		out.Notify.GitHub.Token = "ghp-***"
	}
	if out.Notify.GitLab.Token != "" {
		out.Notify.GitLab.Token = "glpat-***"
	}
	if out.History.DSN != "" {
		out.History.DSN = "***"
	}
	return out
}

// setDefaults populates viper with out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.gemini_model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.ollama_url", "http://localhost:11434")
	v.SetDefault("ai.ollama_model", "llama3")
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.max_attempts", 2)
	v.SetDefault("ai.retry_backoff", 2*time.Second)
	v.SetDefault("ai.breaker_failures", 3)

	v.SetDefault("diff.base_ref", "main")
	v.SetDefault("diff.remote", "origin")
	v.SetDefault("diff.extensions", []string{".js"})
	v.SetDefault("diff.exclude_dirs", []string{"scripts/", "node_modules/"})

	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("pipeline.fail_on_error", false)
	v.SetDefault("pipeline.profile", "")
	v.SetDefault("pipeline.profiles_dir", filepath.Join(home, DefaultProfileDir))

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("history.dsn", "")

	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.github.token", "")
	v.SetDefault("notify.github.repository", "")
	v.SetDefault("notify.github.pr_number", 0)
	v.SetDefault("notify.github.host", "")
	v.SetDefault("notify.gitlab.token", "")
	v.SetDefault("notify.gitlab.host", "")
	v.SetDefault("notify.gitlab.project_id", "")
	v.SetDefault("notify.gitlab.mr_iid", 0)
}

// bindLegacyEnv binds each key to its AUTOFIX_* name followed by the legacy
// CI names. viper uses the first variable that is set.
func bindLegacyEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	for key, names := range legacyEnv {
		input := append([]string{key, EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))}, names...)
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	return nil
}

func normalise(cfg *Config) {
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Diff.BaseRef = strings.TrimSpace(cfg.Diff.BaseRef)
	if cfg.Diff.BaseRef == "" {
		cfg.Diff.BaseRef = "main"
	}
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 1
	}
	for i, ext := range cfg.Diff.Extensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Diff.Extensions[i] = ext
	}
	if cfg.Notify.GitHub.PRNumber == 0 {
		cfg.Notify.GitHub.PRNumber = pullNumberFromRef(os.Getenv("GITHUB_REF"))
	}
}

// pullNumberFromRef extracts N from a pull-request ref such as
// refs/pull/N/merge. Any other ref yields 0.
func pullNumberFromRef(ref string) int {
	rest, ok := strings.CutPrefix(ref, "refs/pull/")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.History.Path = expandHome(cfg.History.Path, home)
	cfg.Pipeline.ProfilesDir = expandHome(cfg.Pipeline.ProfilesDir, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
