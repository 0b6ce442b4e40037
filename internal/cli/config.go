package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tessro/weradio/internal/config"
	werrors "github.com/tessro/weradio/internal/errors"
	"github.com/tessro/weradio/internal/wizard"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing weradio configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including defaults and environment overrides.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value. With no arguments a picker opens.

Supported keys:
` + settableKeyHelp() + `
Examples:
  weradio config set server.url https://radio.example.com
  weradio config set defaults.volume 50`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// settable lists the keys `config set` accepts and whether each is an integer.
var settable = map[string]struct {
	integer bool
	help    string
}{
	"server.url":                {false, "Station server URL"},
	"server.manifest_path":      {false, "Live stream manifest path"},
	"server.web_url":            {false, "Station web page (default: server root)"},
	"stream.output":             {false, "Audio output: exec, native, or null"},
	"stream.cooldown_ms":        {true, "Wait before rebuilding a failed stream"},
	"stream.live_sync_segments": {true, "Segments behind the live edge to start at"},
	"poll.interval_ms":          {true, "Status poll interval"},
	"poll.live_interval_ms":     {true, "Status poll interval while on air"},
	"library.settle_delay_ms":   {true, "Wait before confirming a library change"},
	"defaults.volume":           {true, "Default volume (0-100)"},
	"auth.token_file":           {false, "Credential file location"},
	"tail.interval_ms":          {true, "Poll interval for weradio tail"},
	"tui.theme":                 {false, "Dashboard theme: auto, dark, or light"},
	"tui.render_interval_ms":    {true, "Dashboard progress refresh interval"},
	"log.level":                 {false, "Log level: debug, info, warn, or error"},
	"log.file":                  {false, "Log file (rotated); empty logs to stderr"},
}

func settableKeys() []string {
	keys := make([]string, 0, len(settable))
	for k := range settable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func settableKeyHelp() string {
	var sb strings.Builder
	for _, k := range settableKeys() {
		fmt.Fprintf(&sb, "  %-26s %s\n", k, settable[k].help)
	}
	return sb.String()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		return writeJSON(cfg)
	}

	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	_, err := os.Stat(path)
	exists := err == nil

	if JSONOutput() {
		return writeJSON(map[string]any{"path": path, "exists": exists})
	}
	fmt.Println(path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return werrors.WithSuggestion(
			fmt.Errorf("%w at %s", werrors.ErrConfigNotFound, configPath),
			"Run 'weradio config init' first")
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	defaultCfg := config.Default()
	if serverURL != "" {
		defaultCfg.Server.URL = serverURL
	}
	if err := writeConfigFile(configPath, defaultCfg); err != nil {
		return err
	}

	if JSONOutput() {
		return writeJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}

	fmt.Printf("Created config file: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set your station's address: weradio config set server.url <url>")
	fmt.Println("  2. Run 'weradio listen' or 'weradio ui' to tune in")
	fmt.Println("  3. Run 'weradio auth login' to manage the queue and library")
	return nil
}

// getConfigPath is the file config commands read and write: the --config
// flag, else the first existing file on the search path, else the
// default location.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if path := config.FindConfigFile(); path != "" {
		return path
	}
	return config.DefaultPath()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value, err := configSetArgs(args)
	if err != nil {
		return err
	}

	setting, ok := settable[key]
	if !ok {
		return fmt.Errorf("unknown key %q. Supported keys:\n%s", key, settableKeyHelp())
	}

	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return werrors.WithSuggestion(
			fmt.Errorf("%w at %s", werrors.ErrConfigNotFound, configPath),
			"Run 'weradio config init' first")
	}

	raw := make(map[string]any)
	if _, err := toml.DecodeFile(configPath, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	var typed any = value
	if setting.integer {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("value must be an integer for %s", key)
		}
		typed = i
	}
	setRawKey(raw, key, typed)

	// Reject values the loader would refuse before touching the file.
	var check config.Config
	if err := reencode(raw, &check); err != nil {
		return fmt.Errorf("failed to apply %s: %w", key, err)
	}
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %w", werrors.ErrInvalidConfig, err)
	}

	if err := writeConfigFile(configPath, raw); err != nil {
		return err
	}

	if JSONOutput() {
		return writeJSON(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// configSetArgs returns the key and value from args, prompting for
// whatever is missing when a terminal is available.
func configSetArgs(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if !wizard.IsTerminal() {
		return "", "", fmt.Errorf("usage: weradio config set <key> <value>")
	}

	var key, value string
	if len(args) == 1 {
		key = args[0]
	}

	var groups []*huh.Group
	if key == "" {
		options := make([]huh.Option[string], 0, len(settable))
		for _, k := range settableKeys() {
			options = append(options, huh.NewOption(fmt.Sprintf("%s  %s", k, settable[k].help), k))
		}
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select setting").
				Options(options...).
				Value(&key),
		))
	}
	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Value").
			Value(&value),
	))

	if err := huh.NewForm(groups...).Run(); err != nil {
		return "", "", fmt.Errorf("selection cancelled: %w", err)
	}
	return key, value, nil
}

// setRawKey assigns a "section.field" key in a decoded TOML tree.
func setRawKey(raw map[string]any, key string, value any) {
	section, field, _ := strings.Cut(key, ".")
	sectionMap, ok := raw[section].(map[string]any)
	if !ok {
		sectionMap = make(map[string]any)
		raw[section] = sectionMap
	}
	sectionMap[field] = value
}

// reencode round-trips a raw TOML tree into a typed config, rejecting keys
// the config does not define.
func reencode(raw map[string]any, dst *config.Config) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(raw); err != nil {
		return err
	}
	md, err := toml.Decode(sb.String(), dst)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %s", undecoded[0])
	}
	return nil
}

func writeConfigFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, _ = fmt.Fprintln(f, "# weradio configuration")
	_, _ = fmt.Fprintln(f, "")

	encoder := toml.NewEncoder(f)
	encoder.Indent = "  "
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
