package main

import (
	"fmt"
	"time"

	"github.com/jgivc/fetchguard/internal/app"
	"github.com/spf13/cobra"
)

func newFetchCommand(cc *commandContext) *cobra.Command {
	var (
		opts         app.FetchOptions
		dir          string
		timeout      time.Duration
		pollInterval time.Duration
		retries      int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Open a page, click a link and wait until its file is downloaded",
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := &cc.cfg.DownloadConfig
			if cmd.Flags().Changed("dir") {
				dc.Dir = dir
			}

			if cmd.Flags().Changed("timeout") {
				dc.Timeout = timeout
			}

			if cmd.Flags().Changed("poll-interval") {
				dc.PollInterval = pollInterval
			}

			if cmd.Flags().Changed("retries") {
				dc.Retries = retries
			}

			if err := cc.cfg.Validate(); err != nil {
				return err
			}

			a, err := cc.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Fetch(cmd.Context(), opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", rec.Path, rec.Elapsed.Round(time.Millisecond))

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.PageURL, "url", "", "Page that holds the download link")
	cmd.Flags().StringVar(&opts.LinkText, "link", "", "Partial text of the download link")
	cmd.Flags().StringVar(&dir, "dir", "", "Download directory (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the download (overrides config)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "How often to check the download directory (overrides config)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Extra attempts after a timeout (overrides config)")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("link")

	return cmd
}
