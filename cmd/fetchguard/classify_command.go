package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jgivc/fetchguard/internal/adapter/report"
	"github.com/spf13/cobra"
)

func newClassifyCommand(cc *commandContext) *cobra.Command {
	var htmlOut string

	cmd := &cobra.Command{
		Use:   "classify [location name]",
		Short: "Classify a location name against the reference data",
		Long:  "Classify a location name. Without arguments the name is read from standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			if len(args) == 0 {
				var err error
				if raw, err = prompt(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}

			a, err := cc.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Classify(cmd.Context(), raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isTerminal(out) {
				fmt.Fprintln(out, report.Table(rep))
			} else {
				fmt.Fprint(out, report.Plain(rep))
			}

			if htmlOut == "" {
				return nil
			}

			renderer, err := a.HTMLRenderer()
			if err != nil {
				return err
			}

			page, err := renderer.Render(rep)
			if err != nil {
				return err
			}

			if err := os.WriteFile(htmlOut, []byte(page), 0o644); err != nil {
				return fmt.Errorf("cannot write report: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&htmlOut, "html", "", "Also write an HTML report to this file")

	return cmd
}

func prompt(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Location name: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("cannot read location name: %w", err)
	}

	return line, nil
}
