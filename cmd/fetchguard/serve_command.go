package main

import (
	"github.com/spf13/cobra"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the classifier and counters over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Serve(cmd.Context())
		},
	}
}
