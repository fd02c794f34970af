// Command agent runs the local printer and scanner agent: a REST and
// WebSocket API on localhost plus an operator console.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thevladbog/idento-sub000/internal/api"
	"github.com/thevladbog/idento-sub000/internal/config"
	"github.com/thevladbog/idento-sub000/internal/logging"
	"github.com/thevladbog/idento-sub000/internal/printer"
	"github.com/thevladbog/idento-sub000/internal/registry"
	"github.com/thevladbog/idento-sub000/internal/scanner"
	"github.com/thevladbog/idento-sub000/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	var (
		configPath string
		port       int
		headless   bool
	)

	root := &cobra.Command{
		Use:           "idento-agent",
		Short:         "Local printer and scanner agent for Idento kiosks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Agent.Port = port
			}
			return run(cfg, headless)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", os.Getenv("IDENTO_CONFIG"), "path to config file")
	root.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides agent.port)")
	root.Flags().BoolVar(&headless, "headless", false, "run without the console")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, headless bool) error {
	sink := logging.NewSwitch(os.Stderr)
	log, closer, err := logging.New(cfg.Log, sink)
	if err != nil {
		return err
	}
	defer closer.Close()

	reg, err := registry.New(cfg.RegistryFile(), log)
	if err != nil {
		return fmt.Errorf("failed to open printer registry: %w", err)
	}

	manager := printer.NewManager(reg, log)
	printers, err := manager.DetectPrinters()
	if err != nil {
		log.WithError(err).Warn("Printer detection failed")
	}

	pool := printer.NewConnectionPool()
	defer pool.DisconnectAll()

	queue := printer.NewPrintQueue(pool, manager, cfg.Agent.PrintRetries, log)
	defer queue.Stop()

	scanners := scanner.NewManager(reg, nil, log)
	scanners.Start()
	defer scanners.Stop()

	server := api.NewServer(api.Options{
		Manager:     manager,
		Pool:        pool,
		Queue:       queue,
		Scanners:    scanners,
		Logger:      log,
		CORSOrigins: cfg.Agent.CORSOrigins,
		Version:     Version,
	})

	var console *tui.Console
	if !headless {
		console = tui.NewConsole(tui.ConsoleOptions{
			Manager:  manager,
			Queue:    queue,
			Scanners: scanners,
			Executor: server.Executor(),
			Port:     strconv.Itoa(cfg.Agent.Port),
			Version:  Version,
		})
		sink.Set(console.LogWriter())
	}

	manager.OnPrinterAdded(func(p *printer.Printer) {
		server.NotifyPrinterAdded(p)
		if console != nil {
			console.Refresh()
		}
	})
	manager.OnPrinterRemoved(func(id string) {
		pool.Disconnect(id)
		server.NotifyPrinterRemoved(id)
		if console != nil {
			console.Refresh()
		}
	})
	queue.OnUpdate(server.NotifyJob)
	scanners.OnScan(func(s scanner.Scan) {
		server.NotifyScan(s)
		if console != nil {
			console.ScanReceived(s)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go printer.NewMonitor(manager, cfg.MonitorInterval()).Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Agent.Port)
		log.WithField("addr", addr).Info("🚀 Starting agent API")
		serverErr <- server.Run(ctx, addr)
	}()

	log.WithFields(logrus.Fields{
		"version":  Version,
		"printers": len(printers),
	}).Info("🖨️  Idento agent starting")

	consoleDone := make(chan struct{})
	if console != nil {
		go func() {
			if err := console.Run(); err != nil {
				log.WithError(err).Error("Console error")
			}
			close(consoleDone)
		}()
	}

	select {
	case err := <-serverErr:
		if console != nil {
			console.Stop()
		}
		sink.Set(os.Stderr)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("🛑 Shutting down...")
		if console != nil {
			console.Stop()
		}
	case <-consoleDone:
	}

	stop()
	sink.Set(os.Stderr)
	return nil
}
