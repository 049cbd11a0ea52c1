package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/jobala/petrosql/config"
	"github.com/jobala/petrosql/engine"
	"github.com/jobala/petrosql/logger"
	"github.com/jobala/petrosql/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "", "Path to a yaml config file")
	dbPath      = flag.String("db", "", "Database file; empty keeps the database in memory")
	create      = flag.Bool("create", false, "Format a new database file at -db, replacing any existing one")
	metricsAddr = flag.String("metrics_addr", "", "Address to serve prometheus metrics on, e.g. :9090")
	logLevel    = flag.String("log_level", "", "Minimum log level: debug, info, warn or error")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, flag.Args()); err != nil {
		log.Error("petrosql exited", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and lets flags set on the
// command line override it.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.Path = *dbPath
		case "create":
			cfg.Create = *create
		case "metrics_addr":
			cfg.MetricsAddr = *metricsAddr
		case "log_level":
			cfg.Log.Level = *logLevel
		}
	})

	return cfg, nil
}

func run(cfg config.Config, log *zap.Logger, queries []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, log)
	}

	db, err := openEngine(cfg, log, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("closing database", zap.Error(err))
		}
	}()

	sh := newShell(db, os.Stdout)

	// queries given as arguments run in order and skip the prompt
	if len(queries) > 0 {
		for _, q := range queries {
			sh.feed(q + ";")
		}
		return nil
	}

	return sh.interact()
}

func openEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithCacheSize(cfg.CacheSize),
	}

	if cfg.Path == "" {
		return engine.OpenMemory(opts...)
	}

	create := cfg.Create
	if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) {
		create = true
	}

	log.Info("opening database", zap.String("path", cfg.Path), zap.Bool("create", create))
	return engine.OpenPath(cfg.Path, create, opts...)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", zap.Error(err))
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".petrosql_history")
}

func newReadline() (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          PROMPT,
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
}
