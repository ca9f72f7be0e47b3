package main

import (
	"os"

	"github.com/jgivc/fetchguard/internal/app"
	"github.com/jgivc/fetchguard/internal/config"
	"github.com/spf13/cobra"
)

type commandContext struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "fetchguard",
		Short:         "Download a file through a browser and classify location names",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cc.cfgPath)
			if err != nil {
				return err
			}

			cc.cfg = cfg

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cc.cfgPath, "config", "c", "config.yml", "Path to config file")

	root.AddCommand(
		newFetchCommand(cc),
		newClassifyCommand(cc),
		newServeCommand(cc),
		newStatsCommand(cc),
	)

	return root
}

func (cc *commandContext) newApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), cc.cfg, os.Stderr)
}
