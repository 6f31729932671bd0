package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/database64128/dnspod-ddns/tslog"
	"github.com/spf13/pflag"
)

var (
	logNoColor bool
	logNoTime  bool
	logLevel   string
	confPath   string
	envPath    string
	once       bool
	show       bool
)

func init() {
	pflag.BoolVar(&logNoColor, "log-no-color", false, "Disable colors in log output")
	pflag.BoolVar(&logNoTime, "log-no-time", false, "Disable timestamps in log output")
	pflag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pflag.StringVarP(&confPath, "config", "c", "config.json", "Path to the configuration file (.json, .yaml, or .yml)")
	pflag.StringVar(&envPath, "env-file", ".env", "Path to an optional dotenv file")
	pflag.BoolVar(&once, "once", false, "Run one update pass and exit")
	pflag.BoolVar(&show, "show", false, "Print the managed record and exit")
}

func main() {
	pflag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", logLevel, err)
		os.Exit(2)
	}

	logCfg := tslog.Config{
		Level:   level,
		NoColor: logNoColor,
		NoTime:  logNoTime,
	}
	logger := logCfg.NewLogger()

	cfg, err := loadConfig(confPath)
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("path", confPath), tslog.Err(err))
		os.Exit(1)
	}
	if err = loadEnv(envPath, &cfg); err != nil {
		logger.Error("Failed to load environment", slog.String("path", envPath), tslog.Err(err))
		os.Exit(1)
	}

	// The timer is started below unless a one-shot mode is requested.
	autoUpdate := cfg.EnableAutoUpdate
	cfg.EnableAutoUpdate = false

	engine, err := cfg.NewEngine(nil, logger)
	if err != nil {
		logger.Error("Invalid configuration", slog.String("path", confPath), tslog.Err(err))
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCfg := engine.Config()
	fqdn := engineCfg.FQDN()

	switch {
	case show:
		record, ok := engine.MatchedRecord(ctx)
		if !ok {
			fmt.Printf("No matching A record for %s\n", fqdn)
			engine.Close()
			os.Exit(1)
		}
		fmt.Printf("%s  id=%s  line=%s  value=%s  ttl=%s  enabled=%t  updated=%s\n",
			fqdn, record.ID, record.Line, record.Value, record.TTL, record.IsEnabled(),
			record.UpdatedAt().Format(time.RFC3339))

	case once:
		r := engine.Update(ctx)
		fmt.Println(r.Message)
		if !r.Success {
			engine.Close()
			os.Exit(1)
		}

	default:
		if !autoUpdate {
			logger.Info("Auto-update is disabled in the configuration, starting it anyway")
		}
		engine.StartAutoUpdate()
		<-ctx.Done()
		logger.Info("Received exit signal")
	}
}
