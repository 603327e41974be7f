package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openwater-labs/aquanet/internal/api"
	"github.com/openwater-labs/aquanet/internal/dataset"
	"github.com/openwater-labs/aquanet/internal/domain"
	"github.com/openwater-labs/aquanet/internal/repository"
	"github.com/openwater-labs/aquanet/internal/sim"
	"github.com/openwater-labs/aquanet/internal/store"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aquanet",
		Short: "Scenario engine for synthetic water-network sensor datasets",
		Long: `aquanet generates and serves synthetic sensor datasets for
water-distribution networks under configurable leak and sensor-fault
conditions.

The write path simulates each (scenario, leak config) pair once and
caches the result; the read path composes sensor selection and fault
injection on demand, so the three config axes combine without
re-simulation.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML application config")
	rootCmd.PersistentFlags().StringP("collection", "c", "scenarios.xml", "Path to the scenario collection XML")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Collection root directory (default: directory of the collection file)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newListCmd(),
		newGenerateCmd(),
		newExportCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app wires the shared component graph for the CLI commands.
type app struct {
	cfg       *domain.Config
	col       *domain.ScenarioCollection
	configDir string

	store   *store.Store
	records domain.CacheStore
	cache   domain.SeriesCache
	loader  *store.Loader
	orch    *sim.Orchestrator
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	collectionPath, _ := cmd.Flags().GetString("collection")
	outputDir, _ := cmd.Flags().GetString("output")

	cfg, err := domain.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Logging)

	col, err := domain.LoadCollection(collectionPath)
	if err != nil {
		return nil, err
	}
	configDir := filepath.Dir(collectionPath)
	if outputDir == "" {
		outputDir = configDir
	}

	records, err := repository.New(cfg.CacheStore, outputDir)
	if err != nil {
		return nil, err
	}
	cache, err := dataset.NewCache(cfg.DatasetCache)
	if err != nil {
		records.Close()
		return nil, err
	}

	st := store.New(outputDir, slog.Default())
	return &app{
		cfg:       cfg,
		col:       col,
		configDir: configDir,
		store:     st,
		records:   records,
		cache:     cache,
		loader:    store.NewLoader(col, st, cache),
		orch:      sim.New(sim.SyntheticSolver{}, st, records, cache, configDir, slog.Default()),
	}, nil
}

func (a *app) close() {
	a.cache.Close()
	a.records.Close()
}

func setupLogging(cfg domain.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aquanet %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenarios and their configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				out := map[string]store.ConfigNames{}
				for _, name := range a.loader.ListScenarios() {
					out[name] = a.loader.ListConfigs(name)
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			for _, name := range a.loader.ListScenarios() {
				names := a.loader.ListConfigs(name)
				fmt.Printf("%s\n", name)
				fmt.Printf("  leaks:        %v\n", names.Leaks)
				fmt.Printf("  sensors:      %v\n", names.Sensors)
				fmt.Printf("  sensorfaults: %v\n", names.Sensorfaults)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Simulate pairs whose configuration changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			parallel, _ := cmd.Flags().GetBool("parallel")
			workers, _ := cmd.Flags().GetInt("workers")
			force, _ := cmd.Flags().GetBool("force")
			selection, _ := cmd.Flags().GetString("select")
			if workers == 0 {
				workers = a.cfg.Generator.Workers
			}

			summary, err := a.orch.Generate(cmd.Context(), a.col, sim.Options{
				Parallel:  parallel,
				Workers:   workers,
				Force:     force,
				Selection: selection,
			})
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d rebuilt, %d up to date, %d failed\n",
				summary.RunID, summary.Rebuilt, summary.Skipped, summary.Failed)
			for _, p := range summary.Pairs {
				if p.Err != nil {
					fmt.Printf("  FAILED %s.%s: %v\n", p.Scenario, p.LeakConfig, p.Err)
				}
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d pair(s) failed", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Bool("parallel", false, "Run independent pairs concurrently")
	cmd.Flags().Int("workers", 0, "Worker pool size (0 = one per CPU)")
	cmd.Flags().Bool("force", false, "Regenerate matching pairs regardless of cache state")
	cmd.Flags().String("select", "", `CEL expression over scenario and leak, e.g. 'scenario == "ltown"'`)
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Compose one dataset and write it as CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			scenario, _ := cmd.Flags().GetString("scenario")
			leak, _ := cmd.Flags().GetString("leak")
			sensors, _ := cmd.Flags().GetString("sensors")
			faults, _ := cmd.Flags().GetString("faults")
			dir, _ := cmd.Flags().GetString("dir")

			ds, err := a.loader.Get(cmd.Context(), scenario, leak, sensors, faults)
			if err != nil {
				return err
			}
			if err := store.ExportDataset(dir, ds); err != nil {
				return err
			}
			fmt.Printf("exported %s (leak=%s sensors=%s faults=%s) to %s\n", scenario, leak, sensors, faults, dir)
			return nil
		},
	}
	cmd.Flags().String("scenario", "", "Scenario name")
	cmd.Flags().String("leak", "", "Leak config name")
	cmd.Flags().String("sensors", "", "Sensor config name")
	cmd.Flags().String("faults", "", "Sensorfault config name")
	cmd.Flags().String("dir", "export", "Output directory")
	for _, flag := range []string{"scenario", "leak", "sensors", "faults"} {
		cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and generation trigger over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			slog.Info("starting aquanet",
				"version", Version,
				"commit", Commit,
				"build_date", BuildDate,
			)

			srv := api.NewServer(a.cfg.Server, a.loader, a.orch, a.records, Version)

			errCh := make(chan error, 1)
			go func() {
				slog.Info("http server listening",
					"host", a.cfg.Server.Host,
					"port", a.cfg.Server.Port,
				)
				errCh <- srv.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				slog.Info("received shutdown signal", "signal", sig)
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown failed", "error", err)
				return err
			}
			slog.Info("shutdown complete")
			return nil
		},
	}
}
