// Command quicklinkbot runs the QuickLink Telegram bot and its status page.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/quicklink/core/buildinfo"
	corecmd "github.com/m3rciful/quicklink/core/cmd"
	"github.com/m3rciful/quicklink/internal/app"
	"github.com/m3rciful/quicklink/internal/config"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	run := func(cmd *cobra.Command, _ []string) error {
		return corecmd.Run(corecmd.Options{
			ConfigPath:        configPath,
			ConfigEnvVar:      "CONFIG_PATH",
			DefaultConfigPath: defaultConfigPath,
			LoadConfig:        loadConfig,
			Bootstrap:         app.Bootstrap,
			Context:           cmd.Context(),
		})
	}

	root := &cobra.Command{
		Use:          "quicklinkbot",
		Short:        "QuickLink utilities Telegram bot",
		SilenceUsage: true,
		RunE:         run,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (defaults to $CONFIG_PATH or ./config.yaml).")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bot and the status server",
		RunE:  run,
	})
	root.AddCommand(newQRCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func loadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "quicklinkbot %s\n", buildinfo.String())
			return err
		},
	}
}
