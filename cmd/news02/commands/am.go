package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kliewerdaniel/News02/am"
	"github.com/kliewerdaniel/News02/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Show and validate News02 configuration",
	Long: `am - Show and validate News02 configuration ("I am")

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/news02/am.toml)
3. User config (~/.news02/am.toml)
4. Project config (./am.toml, searched up the directory tree)
5. Environment variables (NEWS02_* prefix, e.g. NEWS02_LLM_BASE_URL)

Examples:
  news02 am show                  # Show merged configuration as TOML
  news02 am show --format yaml    # ... as YAML
  news02 am get llm.base_url      # Get one value
  news02 am validate              # Validate configuration
  news02 am where                 # List config files checked`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, llm.models.default_model)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which configuration files are checked",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	format := configFormat
	if jsonOutput(cmd) {
		format = "json"
	}
	out, err := renderSettings(am.GetViper().AllSettings(), format)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// renderSettings formats the merged settings map keyed by config path
func renderSettings(settings map[string]interface{}, format string) (string, error) {
	switch format {
	case "json":
		var buf strings.Builder
		if err := printJSON(&buf, settings); err != nil {
			return "", err
		}
		return buf.String(), nil

	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal config to YAML")
		}
		return "# News02 configuration\n" + string(data), nil

	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal config to TOML")
		}
		return "# News02 configuration\n" + string(data), nil

	default:
		return "", errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.NewNotFoundError("configuration key %q not found", key)
	}

	value := v.Get(key)
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{key: value})
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	if _, err := os.Stat(cfg.Paths.ProfilesFile); err != nil {
		pterm.Warning.WithWriter(cmd.ErrOrStderr()).Printfln("Profiles file %s not found; every job will fail until it exists", cfg.Paths.ProfilesFile)
	}

	pterm.Success.WithWriter(cmd.OutOrStdout()).Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	data := [][]string{{"Order", "File", "Present"}}
	for i, path := range am.ConfigPaths() {
		present := pterm.Gray("no")
		if _, err := os.Stat(path); err == nil {
			present = pterm.Green("yes")
		}
		data = append(data, []string{fmt.Sprint(i + 1), path, present})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Environment variables with the %s_ prefix override every file.\n\n", am.EnvPrefix)
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}
