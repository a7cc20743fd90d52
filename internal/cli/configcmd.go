package cli

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geoviewer/pkg/config"
	"github.com/matzehuels/geoviewer/pkg/errors"
)

// configCommand groups the config subcommands.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the geoviewer configuration file",
	}
	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configShowCommand())
	return cmd
}

func (c *CLI) configInitCommand() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration to --path (default: $XDG_CONFIG_HOME/geoviewer/config.toml).
A path ending in .yaml or .yml is written as YAML.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.DefaultPath()
			}
			if fileExists(path) && !force {
				return errors.New(errors.ErrCodePrecondition, "%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			printSuccess("Config written")
			printFile(path)
			printNextStep("Render with it", appName+" render -g landscape.json -c "+path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "config file to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func (c *CLI) configShowCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(path)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "config file (TOML or YAML)")
	return cmd
}
