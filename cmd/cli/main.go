// Command idento is the operator CLI: template and label tooling, one-off
// check-ins, attendee blocking and agent administration.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/agentclient"
	"github.com/thevladbog/idento-sub000/internal/backend"
	"github.com/thevladbog/idento-sub000/internal/config"
	"github.com/thevladbog/idento-sub000/internal/logging"
)

// Version is set during build via ldflags
var Version = "dev"

// app holds the persistent flags and builds clients from them lazily, so
// offline commands never need a reachable backend or agent
type app struct {
	configPath string
	agentURL   string
	backendURL string
	token      string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func (a *app) config() (config.Config, error) {
	if a.cfg != nil {
		return *a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return cfg, err
	}
	if a.agentURL != "" {
		cfg.Agent.URL = a.agentURL
	}
	if a.backendURL != "" {
		cfg.Backend.URL = a.backendURL
	}
	if a.token != "" {
		cfg.Backend.Token = a.token
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = &cfg
	return cfg, nil
}

func (a *app) logger() (*logrus.Logger, error) {
	if a.log != nil {
		return a.log, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	// the CLI never writes a log file; stdout carries command output
	cfg.Log.File = ""
	log, _, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.log = log
	return log, nil
}

func (a *app) agent() (*agentclient.Client, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return agentclient.New(cfg.Agent.URL), nil
}

func (a *app) backend() (*backend.Client, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	log, err := a.logger()
	if err != nil {
		return nil, err
	}
	return backend.New(cfg.Backend.URL,
		backend.WithToken(cfg.Backend.Token),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.BackendTimeout()}),
		backend.WithLogger(log),
	)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "idento",
		Short:         "Idento check-in and badge printing CLI",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", os.Getenv("IDENTO_CONFIG"), "path to config file")
	pf.StringVarP(&a.agentURL, "agent", "s", "", "agent URL (overrides agent.url)")
	pf.StringVar(&a.backendURL, "backend", "", "backend URL (overrides backend.url)")
	pf.StringVar(&a.token, "token", "", "backend API token (overrides backend.token)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (overrides log.level)")

	root.AddCommand(
		newTemplateCmd(),
		newZPLCmd(),
		newPreviewCmd(),
		newPrintCmd(a),
		newCheckinCmd(a),
		newAttendeeCmd(a),
		newAgentCmd(a),
		newJournalCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printResult prints an agent command result
func printResult(w io.Writer, result *agentclient.CommandResult) {
	if result.Message != "" {
		fmt.Fprintln(w, result.Message)
	}

	if result.Data == nil {
		return
	}

	if printers, ok := result.Data["printers"].([]interface{}); ok {
		fmt.Fprintln(w, "\nPrinters:")
		for _, p := range printers {
			if printer, ok := p.(map[string]interface{}); ok {
				name := printer["name"]
				if name == "" || name == nil {
					name = printer["description"]
				}
				marker := ""
				if def, _ := printer["default"].(bool); def {
					marker = " ⭐"
				}
				fmt.Fprintf(w, "  %s: %s (%s)%s\n", printer["id"], name, printer["type"], marker)
			}
		}
	}

	if jobs, ok := result.Data["jobs"].([]interface{}); ok {
		fmt.Fprintln(w, "\nJobs:")
		for _, j := range jobs {
			if job, ok := j.(map[string]interface{}); ok {
				fmt.Fprintf(w, "  %s: %s (printer: %s)\n",
					job["id"], job["status"], job["printer_id"])
			}
		}
	}

	if jobID, ok := result.Data["job_id"].(string); ok {
		fmt.Fprintf(w, "Job ID: %s\n", jobID)
	}

	if printerID, ok := result.Data["printer_id"].(string); ok {
		fmt.Fprintf(w, "Printer ID: %s\n", printerID)
	}
}
