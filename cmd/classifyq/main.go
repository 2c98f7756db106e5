package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string

	interactive bool
}

type profile struct {
	BaseURL        string `yaml:"baseUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func newUI() *ui {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if !interactive {
		color.NoColor = true
	}
	return &ui{
		title:       color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:          color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:        color.New(color.FgCyan).SprintFunc(),
		warn:        color.New(color.FgYellow).SprintFunc(),
		err:         color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:         color.New(color.FgHiBlack).SprintFunc(),
		interactive: interactive,
	}
}

func main() {
	baseURL := getenv("CLASSIFYQ_BASE_URL", "http://localhost:8080")
	profileName := getenv("CLASSIFYQ_PROFILE", "")
	timeout := 60 * time.Second
	ui := newUI()

	root := &cobra.Command{
		Use:   "classifyq",
		Short: "classifyq CLI",
		Long:  "classifyq CLI for submitting images and reading classification results.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for the classifyq server")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "HTTP timeout per request")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		flags := cmd.Flags()
		if !flags.Changed("base-url") {
			if v := strings.TrimSpace(os.Getenv("CLASSIFYQ_BASE_URL")); v != "" {
				baseURL = v
			} else if prof.BaseURL != "" {
				baseURL = prof.BaseURL
			}
		}
		if !flags.Changed("timeout") && prof.TimeoutSeconds > 0 {
			timeout = time.Duration(prof.TimeoutSeconds) * time.Second
		}
		if !flags.Changed("profile") && profileName == "" && active != "" {
			profileName = active
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(submitCmd(&baseURL, &timeout, ui))
	root.AddCommand(resultCmd(&baseURL, &timeout, ui))
	root.AddCommand(historyCmd(&baseURL, &timeout, ui))
	root.AddCommand(modelCmd(&baseURL, &timeout, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func helpTemplate(ui *ui) string {
	title := ui.title("classifyq")
	return fmt.Sprintf(`%s - image classification CLI

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  classifyq init --base-url http://localhost:8080
  classifyq submit ./dog.png
  classifyq submit ./photos/*.jpg --concurrency 4
  classifyq result 7f6c2d1e-...
  classifyq history --limit 10

`, title, configPath())
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("CLASSIFYQ_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".classifyq", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

// termWidth returns the terminal width, or def when stdout is not a terminal.
func termWidth(def int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return def
	}
	return w
}
