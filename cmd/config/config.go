package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MLAB-project/pysdr/internal/conf"
)

// Command creates the config command with its dump and init subcommands
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(redacted(settings))
			if err != nil {
				return fmt.Errorf("error encoding configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.WriteDefaultConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "default configuration written to %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(dumpCmd, initCmd)
	return cmd
}

// redacted copies settings with credentials masked
func redacted(settings *conf.Settings) *conf.Settings {
	out := *settings
	if out.MQTT.Password != "" {
		out.MQTT.Password = "[REDACTED]"
	}
	if out.Sentry.DSN != "" {
		out.Sentry.DSN = "[REDACTED]"
	}
	if out.Datastore.MySQL.DSN != "" {
		out.Datastore.MySQL.DSN = "[REDACTED]"
	}
	return &out
}
