package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"election-backend/config"
	"election-backend/service"
)

var (
	flagConfig      string
	flagMetricsFile string
)

var (
	cfg    *config.Config
	cfgErr error
	conf   = config.New()
	log    = zerolog.New(zerolog.NewConsoleWriter())
)

var rootCmd = &cobra.Command{
	Use:           "electionctl",
	Short:         "Run stake-weighted commit-reveal elections",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "path to a config file")
	flags.String("datadir", "./data", "directory holding the election store")
	flags.String("backend", "bolt", "storage backend: memory, json or bolt")
	flags.String("log-level", "info", "log level")
	flags.StringVar(&flagMetricsFile, "metrics-file", "", "write prometheus metrics of the run to this file")

	_ = conf.BindPFlag("storage.path", flags.Lookup("datadir"))
	_ = conf.BindPFlag("storage.backend", flags.Lookup("backend"))
	_ = conf.BindPFlag("log.level", flags.Lookup("log-level"))

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	cfg, cfgErr = config.Load(conf, flagConfig)
	if cfgErr != nil {
		return
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		cfgErr = err
		return
	}
	log = logger
}

// openService opens the configured store and builds a service on top of it.
// The returned function closes the store.
func openService() (*service.ElectionService, *prometheus.Registry, func(), error) {
	if cfgErr != nil {
		return nil, nil, nil, cfgErr
	}

	store, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}

	registry := prometheus.NewRegistry()
	svc, err := service.NewElectionService(store, cfg.Params(),
		service.WithLogger(log),
		service.WithMetrics(service.NewPrometheusCollector(registry)),
	)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	return svc, registry, closeStore, nil
}

// withService runs fn against a freshly opened service.
func withService(fn func(svc *service.ElectionService) error) error {
	svc, registry, closeStore, err := openService()
	if err != nil {
		return err
	}
	defer closeStore()

	runErr := fn(svc)
	if flagMetricsFile != "" {
		if err := prometheus.WriteToTextfile(flagMetricsFile, registry); err != nil {
			log.Error().Err(err).Str("file", flagMetricsFile).Msg("failed to write metrics")
		}
	}
	return runErr
}
