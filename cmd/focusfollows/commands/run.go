package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/api"
	"github.com/bryanchriswhite/focusfollows/internal/engine"
	"github.com/bryanchriswhite/focusfollows/internal/input"
	"github.com/bryanchriswhite/focusfollows/internal/logger"
	"github.com/bryanchriswhite/focusfollows/internal/window"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start focus-follows-mouse",
	Long: `Start watching the pointer and raising the window under it.

Runs until interrupted. With --port (or status.enabled in the config file) a
status API is served on localhost.`,
	Example: `  # Run with the built-in rules
  focusfollows run

  # Only raise windows komorebi manages
  focusfollows run --hwnds "$LOCALAPPDATA/komorebi/komorebi.hwnd.json"

  # Serve the status API and log every decision
  focusfollows run --port 8765 --log-level trace`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("run")

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	rules, err := configMgr.RuleSet()
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	backend, err := window.Open(cfg.Backend)
	if err != nil {
		return err
	}
	defer backend.Close()

	source, err := input.Open(cfg.Backend, input.Options{PollInterval: cfg.PollInterval})
	if err != nil {
		return err
	}

	eng, err := engine.New(backend, window.NewRaiser(backend), engine.Options{
		ExternalSourcePath: configMgr.ExternalSource(),
		Rules:              rules,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := source.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to start %s input: %w", source.Name(), err)
	}

	if cfg.Status.Enabled {
		server := api.NewServer(eng, backend.Name())
		go func() {
			if err := server.Start(cfg.Status.Port); err != nil {
				log.Error().Err(err).Int("port", cfg.Status.Port).Msg("Status server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	log.Info().
		Str("backend", backend.Name()).
		Str("input", source.Name()).
		Int("rules", len(rules.Rules())).
		Msg("focusfollows is running, press Ctrl+C to stop")

	err = eng.Run(ctx, events)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Shutting down gracefully")
		return nil
	}
	return err
}
