// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/roomupgrade/bridge"
	"github.com/bureau-foundation/roomupgrade/lib/clock"
	"github.com/bureau-foundation/roomupgrade/lib/config"
	"github.com/bureau-foundation/roomupgrade/lib/roomstore"
	"github.com/bureau-foundation/roomupgrade/lib/secret"
	"github.com/bureau-foundation/roomupgrade/lib/version"
	"github.com/bureau-foundation/roomupgrade/messaging"
	"github.com/bureau-foundation/roomupgrade/upgrade"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		logFormat   string
		verbose     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("bureau-bridge", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the bridge config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&logFormat, "log-format", "", "log output format, json or text (overrides logging.format)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		fmt.Printf("bureau-bridge %s\n", version.Info())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(os.Stderr, cfg, verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runBridge(ctx, cfg, logger)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger builds the process logger from the logging section. verbose
// forces debug level.
func newLogger(output io.Writer, cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	switch cfg.Logging.Format {
	case "text":
		return slog.New(slog.NewTextHandler(output, options)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(output, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want json or text)", cfg.Logging.Format)
	}
}

func runBridge(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	botUserID, err := cfg.BotUserID()
	if err != nil {
		return err
	}
	ghostPattern, err := cfg.GhostPattern()
	if err != nil {
		return err
	}
	maxBackoff, err := cfg.MaxBackoff()
	if err != nil {
		return err
	}

	var store *roomstore.Store
	if cfg.Upgrade.MigrateStoreEntries {
		store, err = roomstore.Open(roomstore.Config{
			Path:     cfg.Database.Path,
			PoolSize: cfg.Database.PoolSize,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("opening room store: %w", err)
		}
		defer store.Close()
		logger.Info("room store open", "path", cfg.Database.Path)
	}

	token, err := secret.ReadFromPath(cfg.AppService.ASTokenFile)
	if err != nil {
		return fmt.Errorf("reading appservice token: %w", err)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		UserAgent:     version.UserAgent("bureau-bridge"),
		Logger:        logger,
	})
	if err != nil {
		token.Close()
		return fmt.Errorf("creating matrix client: %w", err)
	}
	session, err := client.AppServiceSession(botUserID, token)
	if err != nil {
		token.Close()
		return fmt.Errorf("creating appservice session: %w", err)
	}
	defer session.Close()

	userID, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("validating appservice token: %w", err)
	}
	if userID != botUserID {
		return fmt.Errorf("appservice token belongs to %s, config names %s", userID, botUserID)
	}
	logger.Info("matrix session valid", "user_id", userID)

	identities, err := bridge.NewIdentities(session, ghostPattern)
	if err != nil {
		return err
	}

	options := upgrade.Options{
		DisableGhostMigration: !cfg.Upgrade.MigrateGhosts,
		DisableEntryMigration: !cfg.Upgrade.MigrateStoreEntries,
		OnComplete:            logResult(logger),
		Logger:                logger,
	}
	var entryStore upgrade.EntryStore
	if store != nil {
		entryStore = store
	}
	handler, err := upgrade.NewHandler(identities, entryStore, options)
	if err != nil {
		return err
	}
	defer handler.Wait()

	syncBridge, err := bridge.New(bridge.Config{
		Session:    session,
		Handler:    handler,
		Clock:      clock.Real(),
		Timeout:    cfg.Sync.TimeoutMilliseconds,
		MaxBackoff: maxBackoff,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("bureau-bridge running",
		"version", version.Info(),
		"homeserver", cfg.HomeserverURL,
		"migrate_ghosts", cfg.Upgrade.MigrateGhosts,
		"migrate_store_entries", cfg.Upgrade.MigrateStoreEntries,
	)
	if err := syncBridge.Run(ctx); err != nil {
		return err
	}

	if pending := handler.Pending(); len(pending) > 0 {
		logger.Warn("shutting down with upgrades still awaiting an invite", "pending", len(pending))
	}
	logger.Info("shutting down")
	return nil
}

// logResult reports each finished room pair.
func logResult(logger *slog.Logger) func(upgrade.Result) {
	return func(result upgrade.Result) {
		attributes := []any{
			"old_room_id", result.OldRoomID,
			"new_room_id", result.NewRoomID,
			"state", result.State,
			"migrated_entries", result.Outcome.MigratedEntries,
			"migrated_ghosts", result.Outcome.MigratedGhosts,
		}
		if result.Err != nil {
			logger.Error("room upgrade failed", append(attributes, "error", result.Err)...)
			return
		}
		logger.Info("room upgrade finished", attributes...)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `bureau-bridge - carry bridge state across Matrix room upgrades

Usage:
  bureau-bridge [flags]

The config file path comes from --config or $%s.

Flags:
%s`, config.EnvironmentVariable, flagSet.FlagUsages())
}
