package command

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"servergate/internal/command/serve"
	"servergate/internal/config"
	"servergate/internal/version"
	"servergate/pkg/flags"
	"servergate/pkg/log"
)

// NewRootCommand builds the servergated command tree.
func NewRootCommand() (*cobra.Command, error) {
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:   "servergated",
		Short: "Servergate - request gate for the compute lifecycle service",
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			if err := log.Configure(&cfg.Logging); err != nil {
				return fmt.Errorf("configuring logging: %w", err)
			}

			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	log.AddFlagsToCommand(cmd, &cfg.Logging)

	serveCmd, err := serve.NewCommand(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating serve command: %w", err)
	}

	cmd.AddCommand(serveCmd)
	cmd.AddCommand(versionCommand())

	cobra.OnInitialize(initCobra)

	return cmd, nil
}

func initCobra() {
	viper.SetEnvPrefix("SERVERGATE")
	viper.AutomaticEnv()
	viper.SetConfigType("toml")
	viper.SetConfigName("servergate")
	viper.AddConfigPath("$HOME/.config/servergate/")
	viper.AddConfigPath("/etc/servergate/")

	_ = viper.ReadInConfig()
}

func versionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of servergate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			long, err := cmd.Flags().GetBool("long")
			if err != nil {
				return err
			}

			if long {
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"%s\n  Version:    %s\n  CommitHash: %s\n  BuildDate:  %s\n",
					version.PackageName,
					version.Version,
					version.CommitHash,
					version.BuildDate,
				)

				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.PackageName, version.Version)

			return nil
		},
	}

	_ = cmd.Flags().Bool("long", false, "Print long version information")

	return cmd
}
