// Package main provides the vibe-replay worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/vibe-replay/internal/analysis"
	"github.com/thebtf/vibe-replay/internal/config"
	"github.com/thebtf/vibe-replay/internal/db"
	"github.com/thebtf/vibe-replay/internal/eventlog"
	"github.com/thebtf/vibe-replay/internal/watcher"
	"github.com/thebtf/vibe-replay/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Listen port (default: from settings or 37731)")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.vibe-replay)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	dbPath := config.DBPath()
	sessionsDir := config.SessionsDir()
	if *dataDir != "" {
		dbPath = *dataDir + "/vibe-replay.db"
		sessionsDir = *dataDir + "/sessions"
	}

	listenPort := config.GetWorkerPort()
	if *port != 0 {
		listenPort = *port
	}

	store, err := db.NewStore(db.Config{Path: dbPath, MaxConns: cfg.MaxConns})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	logs, err := eventlog.NewStore(sessionsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session store")
	}

	rules, err := analysis.LoadRules(config.RulesPath())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load phase rules, using defaults")
		rules = analysis.DefaultRules()
	}

	svc := worker.New(worker.Options{
		Version:  Version,
		Config:   cfg,
		Store:    store,
		Logs:     logs,
		Analyzer: analysis.New(cfg.AnalysisConfig(), rules),
	})

	startWatchers(dbPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down worker")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown did not finish cleanly")
		}
	}()

	if err := svc.Start(listenPort); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}

// startWatchers reacts to outside interference with the data
// directory. Both cases exit the process; the next hook invocation
// respawns a fresh worker.
func startWatchers(dbPath string) {
	dbWatcher, err := watcher.OnDelete(dbPath, func() {
		log.Warn().Str("path", dbPath).Msg("Database deleted, exiting for a clean restart")
		time.Sleep(100 * time.Millisecond)
		os.Exit(0)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create database watcher")
	} else if err := dbWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start database watcher")
	}

	settingsPath := config.SettingsPath()
	settingsWatcher, err := watcher.OnChange(settingsPath, func() {
		log.Warn().Str("path", settingsPath).Msg("Settings changed, exiting for restart")
		time.Sleep(100 * time.Millisecond)
		os.Exit(0)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
	} else if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
	}
}
