package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/profiles"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup of backend, base branch and history",
	Long: `Walks through the settings a CI run needs and writes them to the config
file. Every value can still be overridden from the environment
(GEMINI_API_KEY, AI_PROVIDER, GITHUB_BASE_REF, AUTOFIX_*).`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  ctrlscan-autofix setup"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// --- Step 1: backend ---
	fmt.Println(headerStyle.Render("  Step 1/3 · Generative backend"))
	provider := cfg.AI.Provider
	if provider == "local" {
		provider = "ollama"
	}
	backendForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Backend").
				Description("Gemini is hosted and needs an API key. Ollama runs a local model.").
				Options(
					huh.NewOption("Gemini (hosted)", "gemini"),
					huh.NewOption("Ollama (local)", "ollama"),
				).
				Value(&provider),
		),
	)
	if err := backendForm.Run(); err != nil {
		return err
	}
	cfg.AI.Provider = provider

	var details *huh.Form
	if provider == "gemini" {
		details = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Gemini API key").
					Description("Leave blank to supply GEMINI_API_KEY from the CI environment instead.").
					Placeholder("AIza...").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.AI.GeminiKey),
				huh.NewInput().
					Title("Model").
					Value(&cfg.AI.GeminiModel),
			),
		)
	} else {
		details = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Ollama URL").
					Value(&cfg.AI.OllamaURL),
				huh.NewInput().
					Title("Model").
					Description("Any model pulled on that server, e.g. llama3 or codellama.").
					Value(&cfg.AI.OllamaModel),
			),
		)
	}
	if err := details.Run(); err != nil {
		return err
	}

	// --- Step 2: change set and policy ---
	fmt.Println(headerStyle.Render("\n  Step 2/3 · Change set and policy"))
	extensions := strings.Join(cfg.Diff.Extensions, ",")
	profileOptions := []huh.Option[string]{huh.NewOption("none (default policy)", "")}
	if list, err := profiles.List(cfg.Pipeline.ProfilesDir); err == nil {
		for _, p := range list {
			profileOptions = append(profileOptions, huh.NewOption(p.Name+" · "+p.Description, p.Name))
		}
	}
	policyForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base branch").
				Description("Changed files are computed against the merge base with this branch.").
				Value(&cfg.Diff.BaseRef),
			huh.NewInput().
				Title("Source extensions").
				Description("Comma-separated, e.g. .js,.ts").
				Value(&extensions),
			huh.NewSelect[string]().
				Title("Remediation profile").
				Options(profileOptions...).
				Value(&cfg.Pipeline.Profile),
			huh.NewConfirm().
				Title("Fail the job when files error and nothing was fixed?").
				Value(&cfg.Pipeline.FailOnError),
		),
	)
	if err := policyForm.Run(); err != nil {
		return err
	}
	cfg.Diff.Extensions = splitList(extensions)

	// --- Step 3: history ---
	fmt.Println(headerStyle.Render("\n  Step 3/3 · Run history (optional)"))
	historyForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Record each run in a local SQLite history?").
				Value(&cfg.History.Enabled),
		),
	)
	if err := historyForm.Run(); err != nil {
		return err
	}

	cfgPath, err := config.ConfigPath(cfgFile)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Println(successStyle.Render("\n  Saved " + cfgPath))
	fmt.Println(dimStyle.Render("  Next: ctrlscan-autofix doctor\n"))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
