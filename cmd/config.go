package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/ai"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/profiles"
)

var configOutputFmt string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long: `The effective configuration merges the config file, built-in defaults and
the environment (AUTOFIX_* names and the CI variables GEMINI_API_KEY,
AI_PROVIDER, GITHUB_BASE_REF, OLLAMA_URL and friends).`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with credentials masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redacted := config.Redacted(cfg)
		out := cmd.OutOrStdout()
		switch strings.ToLower(configOutputFmt) {
		case "yaml":
			// Round-trip through JSON so the YAML keys match the file format.
			data, err := json.Marshal(redacted)
			if err != nil {
				return err
			}
			var generic map[string]any
			if err := json.Unmarshal(data, &generic); err != nil {
				return err
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(generic)
		case "json", "":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(redacted)
		default:
			return fmt.Errorf("unknown output format %q (json|yaml)", configOutputFmt)
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the backend and profile settings would start a run",
	Long: `Builds the configured AI backend and loads the selected profile without
contacting any service. Exits 1 on the same configuration errors that would
abort 'run'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		backend, err := ai.New(cfg.AI)
		if err != nil {
			return fmt.Errorf("ai: %w", err)
		}
		if _, err := profiles.Load(cfg.Pipeline.Profile, cfg.Pipeline.ProfilesDir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
			fmt.Sprintf("Configuration OK (backend %s, base %s/%s)", backend.Name(), cfg.Diff.Remote, cfg.Diff.BaseRef)))
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configOutputFmt, "output", "json", "Output format: json|yaml")
	configCmd.AddCommand(configShowCmd, configPathCmd, configValidateCmd)
}
