package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/journal"
	"github.com/thevladbog/idento-sub000/internal/model"
)

func statusMark(s checkin.Status) string {
	switch s {
	case checkin.StatusSuccess:
		return "✓"
	case checkin.StatusWarning:
		return "!"
	default:
		return "✗"
	}
}

func newCheckinCmd(a *app) *cobra.Command {
	var (
		eventID string
		doPrint bool
		printer string
	)
	cmd := &cobra.Command{
		Use:   "checkin <code>",
		Short: "Check an attendee in by code, as a kiosk would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if eventID == "" {
				eventID = cfg.Kiosk.EventID
			}
			if eventID == "" {
				return fmt.Errorf("--event is required")
			}
			log, err := a.logger()
			if err != nil {
				return err
			}
			api, err := a.backend()
			if err != nil {
				return err
			}
			agent, err := a.agent()
			if err != nil {
				return err
			}

			var printErr error
			opts := checkin.Options{
				Backend:  api,
				BadgeZPL: api,
				Printer:  agent,
				Settings: checkin.NewMemoryStore(checkin.Settings{
					Mode:         checkin.ModeScanner,
					PrintEnabled: doPrint,
					PrinterName:  printer,
				}),
				OnPrintError: func(err error) { printErr = err },
				Logger:       log,
			}
			if j, err := journal.Open(cfg.JournalFile()); err != nil {
				log.WithError(err).Debug("Check-in journal disabled")
			} else {
				defer j.Close()
				opts.Recorder = j
			}

			ctl, err := checkin.NewController(opts)
			if err != nil {
				return err
			}
			defer ctl.Close()

			if err := ctl.LoadEvent(cmd.Context(), model.ID(eventID)); err != nil {
				return fmt.Errorf("failed to load event: %w", err)
			}

			res, err := ctl.SubmitCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n", statusMark(res.Status), res.Message)
			if res.Attendee != nil {
				printAttendee(w, res.Attendee)
			}
			total, checkedIn := ctl.Stats()
			fmt.Fprintf(w, "%d/%d checked in\n", checkedIn, total)

			if printErr != nil {
				return fmt.Errorf("badge not printed: %w", printErr)
			}
			if res.Status == checkin.StatusError {
				return fmt.Errorf("check-in failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&eventID, "event", "e", "", "event ID (default kiosk.event_id)")
	cmd.Flags().BoolVar(&doPrint, "print", false, "print the badge after a successful check-in")
	cmd.Flags().StringVarP(&printer, "printer", "p", "", "printer name (default: agent's default printer)")
	return cmd
}

func printAttendee(w io.Writer, at *model.Attendee) {
	fmt.Fprintf(w, "  %s", at.FullName())
	if at.Company != "" {
		fmt.Fprintf(w, ", %s", at.Company)
	}
	fmt.Fprintln(w)
	if at.CheckedInAt != nil {
		fmt.Fprintf(w, "  Checked in at %s\n", at.CheckedInAt.Local().Format("2006-01-02 15:04"))
	}
}

func newAttendeeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendee",
		Short: "Manage attendees",
	}

	var reason string
	block := &cobra.Command{
		Use:   "block <attendee-id>",
		Short: "Block an attendee from checking in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			api, err := a.backend()
			if err != nil {
				return err
			}
			if err := api.Block(cmd.Context(), model.ID(args[0]), reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Attendee %s blocked\n", args[0])
			return nil
		},
	}
	block.Flags().StringVarP(&reason, "reason", "r", "", "reason shown at check-in")

	unblock := &cobra.Command{
		Use:   "unblock <attendee-id>",
		Short: "Allow a blocked attendee to check in again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.backend()
			if err != nil {
				return err
			}
			if err := api.Unblock(cmd.Context(), model.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Attendee %s unblocked\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(block, unblock)
	return cmd
}

func newJournalCmd(a *app) *cobra.Command {
	var (
		eventID string
		limit   int
		stats   bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the local check-in journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg.JournalFile())
			if err != nil {
				return err
			}
			defer j.Close()

			w := cmd.OutOrStdout()
			if stats {
				if eventID == "" {
					eventID = cfg.Kiosk.EventID
				}
				if eventID == "" {
					return fmt.Errorf("--event is required with --stats")
				}
				counts, err := j.Counts(cmd.Context(), model.ID(eventID))
				if err != nil {
					return err
				}
				for _, s := range []checkin.Status{checkin.StatusSuccess, checkin.StatusWarning, checkin.StatusError} {
					fmt.Fprintf(w, "%s %-8s %d\n", statusMark(s), s, counts[s])
				}
				return nil
			}

			entries, err := j.Recent(cmd.Context(), model.ID(eventID), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "No check-ins recorded")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tEVENT\tCODE\tSTATUS\tMESSAGE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
					e.At.Local().Format("2006-01-02 15:04:05"), e.EventID, e.Code,
					statusMark(checkin.Status(e.Status)), e.Status, e.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&eventID, "event", "e", "", "only this event")
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultLimit, "number of entries")
	cmd.Flags().BoolVar(&stats, "stats", false, "show counts per status")
	return cmd
}
