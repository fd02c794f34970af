package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/zpl"
)

func newPrintCmd(a *app) *cobra.Command {
	var (
		label   labelFlags
		zplFile string
		printer string
	)
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print a badge label or raw ZPL through the agent",
		Example: `  idento print -l badge.json --set first_name=Jane --printer "Front desk"
  idento print --zpl badge.zpl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload string
			switch {
			case zplFile != "" && label.label != "":
				return fmt.Errorf("use either --label or --zpl, not both")
			case zplFile != "":
				raw, err := readInput(zplFile)
				if err != nil {
					return fmt.Errorf("failed to read ZPL: %w", err)
				}
				payload = string(raw)
			case label.label != "":
				spec, fields, err := label.load()
				if err != nil {
					return err
				}
				payload = zpl.GenerateLabel(spec, fields)
			default:
				return fmt.Errorf("one of --label or --zpl is required")
			}
			if strings.TrimSpace(payload) == "" {
				return fmt.Errorf("nothing to print")
			}

			agent, err := a.agent()
			if err != nil {
				return err
			}
			resp, err := agent.Submit(cmd.Context(), printer, payload)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Queued for %s\n", resp.Printer)
			fmt.Fprintf(w, "Job ID: %s\n", resp.JobID)
			return nil
		},
	}
	label.register(cmd)
	cmd.Flags().StringVar(&zplFile, "zpl", "", "raw ZPL file (- for stdin)")
	cmd.Flags().StringVarP(&printer, "printer", "p", "", "printer name or ID (default: agent's default printer)")
	return cmd
}
