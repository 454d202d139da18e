package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "comply"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage comply configuration.

Running bare 'comply config' is the same as 'comply config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

const configTemplate = `# comply configuration
# See: comply config show (for effective values and sources)

# State/data directory (default: ~/.config/comply)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/comply/comply.db)
# db_path: {{ .DBPath }}

# Anthropic (falls back to ANTHROPIC_API_KEY; without a key stages use the
# rule catalog only and no revisions are possible)
anthropic:
  # api_key: ""
  model: "{{ .Model }}"

review:
  # Revisions allowed before a run is finally rejected. Required: there is no
  # default. Use 0 when no API key is configured.
  max_rounds: {{ .MaxRounds }}

  # Prefix of regulation citation tokens extracted into the audit log
  citation_prefix: "{{ .CitationPrefix }}"

  # Whole-word marker a reviewer uses to reject content
  rejection_marker: "{{ .RejectionMarker }}"

  # Run consecutive stages that ignore earlier findings in parallel
  concurrent_stages: {{ .ConcurrentStages }}

  retry:
    max_attempts: {{ .RetryMaxAttempts }}
    initial_interval: {{ .RetryInitial }}
    max_interval: {{ .RetryMax }}

rules:
  # YAML rule catalog; empty uses the built-in FCA catalog
  file: "{{ .RulesFile }}"

# Word limits per channel; omit a channel to leave it unconfigured
# limits:
#   mobile: 30
#   desktop: 80

# REST API port for 'comply serve'
port: {{ .Port }}
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	Model            string
	MaxRounds        int
	CitationPrefix   string
	RejectionMarker  string
	ConcurrentStages bool
	RetryMaxAttempts int
	RetryInitial     string
	RetryMax         string
	RulesFile        string
	Port             int
}

// configFilePath is the file viper loaded, or the default location.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// renderConfig fills the template from the effective configuration.
func renderConfig() ([]byte, error) {
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		Model:            viper.GetString("anthropic.model"),
		MaxRounds:        viper.GetInt("review.max_rounds"),
		CitationPrefix:   viper.GetString("review.citation_prefix"),
		RejectionMarker:  viper.GetString("review.rejection_marker"),
		ConcurrentStages: viper.GetBool("review.concurrent_stages"),
		RetryMaxAttempts: viper.GetInt("review.retry.max_attempts"),
		RetryInitial:     viper.GetDuration("review.retry.initial_interval").String(),
		RetryMax:         viper.GetDuration("review.retry.max_interval").String(),
		RulesFile:        viper.GetString("rules.file"),
		Port:             viper.GetInt("port"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	return buf.Bytes(), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	content, err := renderConfig()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintf(ui.Out, "\n%s", content)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintf(ui.Out, "\n%s", content)
	return nil
}

// shownKeys are the settings 'config show' reports, in display order.
var shownKeys = []string{
	"state_dir",
	"db_path",
	"anthropic.model",
	"review.max_rounds",
	"review.citation_prefix",
	"review.rejection_marker",
	"review.concurrent_stages",
	"review.retry.max_attempts",
	"review.retry.initial_interval",
	"review.retry.max_interval",
	"rules.file",
	"port",
}

// envVarFor mirrors the env key replacer installed in initConfig.
func envVarFor(key string) string {
	return "COMPLY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// fileConfig loads path into a separate viper so keys set in the file can be
// told apart from defaults. A missing or unreadable file yields nil.
func fileConfig(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil
	}
	return v
}

// sourceOf reports where the effective value of key comes from.
func sourceOf(key string, file *viper.Viper) string {
	if env := envVarFor(key); os.Getenv(env) != "" {
		return "env: " + env
	}
	if file != nil && file.IsSet(key) {
		return "file"
	}
	if !viper.IsSet(key) {
		return "unset"
	}
	return "default"
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	file := fileConfig(cfgPath)
	if file != nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range shownKeys {
		value := "-"
		if viper.IsSet(key) {
			value = fmt.Sprint(viper.Get(key))
		}
		if err := table.Append([]string{key, value, sourceOf(key, file)}); err != nil {
			return err
		}
	}
	return table.Render()
}

// editorCommand splits $EDITOR (or $VISUAL) so values like "code --wait" work.
func editorCommand() ([]string, error) {
	for _, name := range []string{"EDITOR", "VISUAL"} {
		if fields := strings.Fields(os.Getenv(name)); len(fields) > 0 {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
}

func configEditRun() error {
	editor, err := editorCommand()
	if err != nil {
		return err
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'comply config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, strings.Join(editor, " "))
		return nil
	}

	editCmd := exec.Command(editor[0], append(editor[1:], cfgPath)...)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
