package commands

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
)

// ConfigCmd shows, validates, and writes the active configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the active configuration",
	Long: `Show, validate, and write the active configuration.

Configuration precedence: environment variables (GENEFOLD_*), then the
nearest genefold.toml walking up from the working directory, then
~/.genefold/genefold.toml, then built-in defaults.

Credentials (NCBI API key, portal email and password) come from the
environment only and are never shown or written to disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration as TOML",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the active configuration",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the active configuration to a TOML file",
	Long: `Write the active configuration to a TOML file, genefold.toml in the
working directory by default. An existing file is rotated into
.back1/.back2/.back3 before being replaced. Credentials come from the
environment and are never written out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Secrets never leave the process, even on stdout.
	out := *cfg
	out.NCBI.APIKey = ""
	out.Portal.Email = ""
	out.Portal.Password = ""

	data, err := toml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "genefold.toml"
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Printf("Wrote configuration to %s\n", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Println("Configuration is valid")
	return nil
}
