// Command kiosk runs the self-service check-in screen for one event
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/agentclient"
	"github.com/thevladbog/idento-sub000/internal/backend"
	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/config"
	"github.com/thevladbog/idento-sub000/internal/journal"
	"github.com/thevladbog/idento-sub000/internal/logging"
	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/internal/settings"
	"github.com/thevladbog/idento-sub000/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	var configPath, eventID string

	root := &cobra.Command{
		Use:           "idento-kiosk",
		Short:         "Self-service check-in kiosk",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if eventID != "" {
				cfg.Kiosk.EventID = eventID
			}
			if cfg.Kiosk.EventID == "" {
				return fmt.Errorf("no event selected: pass --event or set kiosk.event_id")
			}
			return run(cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", os.Getenv("IDENTO_CONFIG"), "path to config file")
	root.Flags().StringVarP(&eventID, "event", "e", "", "event ID (overrides kiosk.event_id)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	sink := logging.NewSwitch(os.Stderr)
	log, closer, err := logging.New(cfg.Log, sink)
	if err != nil {
		return err
	}
	defer closer.Close()

	api, err := backend.New(cfg.Backend.URL,
		backend.WithToken(cfg.Backend.Token),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.BackendTimeout()}),
		backend.WithLogger(log),
	)
	if err != nil {
		return err
	}
	agent := agentclient.New(cfg.Agent.URL)

	opts := checkin.Options{
		Backend:      api,
		BadgeZPL:     api,
		Printer:      agent,
		Settings:     settings.NewFileStore(cfg.SettingsFile()),
		DismissAfter: cfg.DismissAfter(),
		Logger:       log,
	}

	j, err := journal.Open(cfg.JournalFile())
	if err != nil {
		log.WithError(err).Warn("Check-in journal disabled")
	} else {
		defer j.Close()
		opts.Recorder = j
	}

	// the screen exists only after the controller, so early changes are dropped
	var kiosk *tui.Kiosk
	opts.OnChange = func(s checkin.State) {
		if kiosk != nil {
			kiosk.Notify(s)
		}
	}
	opts.OnPrintError = func(err error) {
		if kiosk != nil {
			kiosk.NotifyPrintError(err)
		}
	}

	ctl, err := checkin.NewController(opts)
	if err != nil {
		return err
	}
	defer ctl.Close()

	kiosk = tui.NewKiosk(tui.KioskOptions{
		Controller:   ctl,
		Agent:        agent,
		Scanner:      agent,
		DismissAfter: cfg.DismissAfter(),
		PollInterval: cfg.PollInterval(),
		Logger:       log,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout())
	defer cancel()
	if err := ctl.LoadEvent(ctx, model.ID(cfg.Kiosk.EventID)); err != nil {
		return fmt.Errorf("failed to load event %s: %w", cfg.Kiosk.EventID, err)
	}

	total, checkedIn := ctl.Stats()
	log.WithField("event", ctl.Event().Name).Infof("Loaded %d attendees, %d checked in", total, checkedIn)

	sink.Set(kiosk.LogWriter())
	defer sink.Set(os.Stderr)

	return kiosk.Run()
}
