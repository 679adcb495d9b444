// Package main is the entry point for the PitchAI coaching assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/app"
	"github.com/EduardoFdeM/PitchAI/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if flags.headless {
		cfg.Headless = true
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	log, cleanup, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	application, err := app.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Str("commit", commit).Msg("starting")
	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("run failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type cliFlags struct {
	configPath string
	headless   bool
	logLevel   string
}

func parseFlags() cliFlags {
	var flags cliFlags
	var showVersion bool

	flag.StringVar(&flags.configPath, "config", defaultConfigPath(), "Path to configuration file")
	flag.StringVar(&flags.configPath, "c", defaultConfigPath(), "Path to configuration file (shorthand)")
	flag.BoolVar(&flags.headless, "headless", false, "Run without the terminal dashboard")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "PitchAI - live sales call coaching\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pitchai [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nAPI keys are read from OPENAI_API_KEY and ANTHROPIC_API_KEY.\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("PitchAI %s (%s)\n", version, commit)
		os.Exit(0)
	}
	return flags
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pitchai", "config.yaml")
}

// newLogger builds the root logger. With the dashboard active, stderr
// belongs to the terminal, so logs go to a file or nowhere.
func newLogger(cfg config.Config) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	var w io.Writer
	cleanup := func() {}
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		cleanup = func() { f.Close() }
	case cfg.Headless:
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	default:
		return zerolog.Nop(), cleanup, nil
	}

	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return log, cleanup, nil
}
