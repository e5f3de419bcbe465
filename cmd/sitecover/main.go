// Command sitecover serves site coverage over gRPC and HTTP and offers
// one-shot evaluation and simulation subcommands.
package main

import (
	"os"

	"github.com/signalsfoundry/sitecover/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	envFiles   []string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: o.configFile, EnvFiles: o.envFiles})
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sitecover",
		Short:         "Site imagery coverage engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files loaded before the environment is read")

	root.AddCommand(
		newServeCmd(opts),
		newEvaluateCmd(opts),
		newSimulateCmd(opts),
	)
	return root
}
