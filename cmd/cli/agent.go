package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/checkin"
)

func newAgentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Administer the local printer and scanner agent",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Check that the agent is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			h, err := agent.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Agent %s at %s: %d printer(s), %d scanner(s)\n",
				h.Version, agent.BaseURL(), h.Printers, h.Scanners)
			return nil
		},
	}

	printers := &cobra.Command{
		Use:   "printers",
		Short: "List printers known to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			list, err := agent.Printers(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "No printers found")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tDEFAULT")
			for _, p := range list {
				name := p.Name
				if name == "" {
					name = p.Description
				}
				def := ""
				if p.IsDefault {
					def = "⭐"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, name, p.Type, p.Status, def)
			}
			return tw.Flush()
		},
	}

	def := &cobra.Command{
		Use:   "default [printer]",
		Short: "Show or set the default printer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				if err := agent.SetDefaultPrinter(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(w, "⭐ Default printer set to %s\n", args[0])
				return nil
			}
			name, err := agent.DefaultPrinter(cmd.Context())
			if err != nil {
				return err
			}
			if name == "" {
				fmt.Fprintln(w, "No default printer")
				return nil
			}
			fmt.Fprintln(w, name)
			return nil
		},
	}

	scanners := &cobra.Command{
		Use:   "scanners",
		Short: "List attached scanners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			list, err := agent.Scanners(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "No scanners attached")
				return nil
			}
			for _, s := range list {
				mark := "🟢"
				if !s.Connected {
					mark = "🔴"
				}
				fmt.Fprintf(w, "%s %s", mark, s.PortName)
				if s.LastError != "" {
					fmt.Fprintf(w, " (%s)", s.LastError)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}

	ports := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports a scanner can be attached to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			list, err := agent.ScannerPorts(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "No serial ports found")
				return nil
			}
			for _, p := range list {
				suffix := ""
				if p.InUse {
					suffix = " (in use)"
				}
				fmt.Fprintf(w, "  %s%s\n", p.PortName, suffix)
			}
			return nil
		},
	}

	addScanner := &cobra.Command{
		Use:   "add-scanner <port>",
		Short: "Attach a serial scanner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			if err := agent.AddScanner(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Scanner added on %s\n", args[0])
			return nil
		},
	}

	var timeout time.Duration
	testScanner := &cobra.Command{
		Use:   "test-scanner",
		Short: "Wait for one scan to confirm a scanner works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.ScanTestTimeout()
			}
			agent, err := a.agent()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Scan a code within %s...\n", timeout)
			code, err := checkin.AwaitScan(cmd.Context(), agent, cfg.PollInterval(), timeout)
			if errors.Is(err, checkin.ErrScanTimeout) {
				return fmt.Errorf("no scan received within %s", timeout)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Received: %s\n", code)
			return nil
		},
	}
	testScanner.Flags().DurationVar(&timeout, "timeout", checkin.DefaultScanTestTimeout, "how long to wait")

	exec := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run an agent console command",
		Example: `  idento agent exec printer list
  idento agent exec job status <job-id>
  idento agent exec -- print "Front desk" badge.json --var first_name=Jane`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.agent()
			if err != nil {
				return err
			}
			res, err := agent.Exec(cmd.Context(), commandLine(args))
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.AddCommand(status, printers, def, scanners, ports, addScanner, testScanner, exec)
	return cmd
}

// commandLine joins args for the agent's parser, quoting the ones with
// spaces
func commandLine(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		switch {
		case strings.Contains(arg, `"`):
			arg = "'" + arg + "'"
		case arg == "" || strings.Contains(arg, " "):
			arg = `"` + arg + `"`
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}
