package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/erazemk/lostfound/internal/config"
)

var (
	version = "dev"

	cfgFile string
	v       = config.New()
)

func main() {
	root := &cobra.Command{
		Use:           "lostfound",
		Short:         "Lost and found item board",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: ./lostfound.yaml if present)")
	flags.StringP("db", "d", "lostfound.sqlite3", "SQLite database path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("log-file", "", "also write logs to this file, rotated")
	bindFlags(v, flags, map[string]string{
		config.DB:        "db",
		config.LogLevel:  "log-level",
		config.LogFormat: "log-format",
		config.LogFile:   "log-file",
	})

	root.AddCommand(serveCmd(), initCmd(), userCmd(), localCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up the global logger. The returned
// cleanup closes the log file, if any.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup := setupLogger(cfg.Logging)
	return cfg, cleanup, nil
}

// setupLogger configures zerolog from the logging settings. Errors and above
// go to stderr, everything else to stdout. A log file, when set, receives
// all levels and is rotated by size.
func setupLogger(cfg config.LoggingConfig) func() {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	stdout, stderr := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if cfg.Format != "json" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		stderr = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{levelWriter{stdout: stdout, stderr: stderr}}
	cleanup := func() {}
	if cfg.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writers = append(writers, rotate)
		cleanup = func() { rotate.Close() }
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return cleanup
}

// levelWriter routes error and fatal entries to stderr.
type levelWriter struct {
	stdout io.Writer
	stderr io.Writer
}

func (w levelWriter) Write(p []byte) (int, error) {
	return w.stdout.Write(p)
}

func (w levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= zerolog.ErrorLevel && level != zerolog.NoLevel {
		return w.stderr.Write(p)
	}
	return w.stdout.Write(p)
}

// bindFlags lets flags override config file and environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
