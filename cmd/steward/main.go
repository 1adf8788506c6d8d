package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/districtops/steward/pkg/alerts"
	"github.com/districtops/steward/pkg/cache"
	"github.com/districtops/steward/pkg/config"
	"github.com/districtops/steward/pkg/detector"
	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/metrics"
	"github.com/districtops/steward/pkg/orchestrator"
	"github.com/districtops/steward/pkg/propagate"
	"github.com/districtops/steward/pkg/resilience"
	"github.com/districtops/steward/pkg/scheduler"
	"github.com/districtops/steward/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Steward - membership statistics reconciliation engine",
	Long: `Steward reconciles the periodically-refreshed district membership
feed against cached snapshots, tracks when a reporting period has settled,
and freezes an authoritative copy once the numbers have been stable for the
configured window.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Steward version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "/var/lib/steward", "Data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(configCmd)
}

// initLogging configures the global logger from the root flags
func initLogging(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	jsonOut, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// buildOrchestrator wires the full dependency graph around a store
func buildOrchestrator(store storage.Store, cfg config.ReconciliationConfig) (*orchestrator.Orchestrator, error) {
	resCfg := resilience.DefaultConfig()
	resCfg.PermanentErrors = []error{storage.ErrJobNotFound, storage.ErrTimelineNotFound}

	return orchestrator.New(orchestrator.Deps{
		Store:    store,
		Cache:    cache.NewMirror(),
		Detector: detector.NewStatsDetector(),
		Updater:  propagate.NewMemoryUpdater(),
		Executor: resilience.NewExecutor(resCfg),
		Alerts:   alerts.NewManager(),
		Config:   config.NewService(cfg),
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation daemon",
	Long: `Run the reconciliation daemon: a scheduling loop that processes a
cycle for every active job on the configured interval, plus a Prometheus
metrics endpoint.

Snapshots are read from <data-dir>/snapshots/<district>/{current,cached}.json;
an external fetcher is expected to keep those files up to date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)

		dataDir, _ := cmd.Flags().GetString("data-dir")
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		districts, _ := cmd.Flags().GetStringSlice("districts")
		intervalHours, _ := cmd.Flags().GetInt("interval-hours")

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		orch, err := buildOrchestrator(store, cfg)
		if err != nil {
			return err
		}

		interval := time.Duration(intervalHours) * time.Hour
		source := newFileSource(dataDir)
		sched := scheduler.New(orch, store, source, districts, interval)
		sched.Start()
		defer sched.Stop()

		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Errorf("metrics endpoint failed", err)
			}
		}()

		log.Logger.Info().
			Str("data_dir", dataDir).
			Strs("districts", districts).
			Dur("interval", interval).
			Str("metrics_addr", metricsAddr).
			Msg("steward daemon started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to reconciliation config file (YAML)")
	runCmd.Flags().String("metrics-addr", ":9425", "Prometheus metrics listen address")
	runCmd.Flags().StringSlice("districts", nil, "District IDs to reconcile")
	runCmd.Flags().Int("interval-hours", 24, "Hours between reconciliation cycles")
}
