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
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/consiglia/memoria/ai"
	"github.com/consiglia/memoria/ai/metrics"
	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/internal/version"
	"github.com/consiglia/memoria/memory/collective"
	"github.com/consiglia/memoria/memory/episodic"
	"github.com/consiglia/memoria/memory/golden"
	"github.com/consiglia/memoria/memory/orchestrator"
	"github.com/consiglia/memoria/store"
	"github.com/consiglia/memoria/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "memoria",
	Short: `Semantic memory consolidation core: collective facts, golden answers and episodic timelines for a conversational assistant.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution; a systemd unit carries
		// its environment itself.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile, storeInstance, err := setup(true)
		if err != nil {
			slog.Error("failed to start", "error", err)
			return
		}
		defer storeInstance.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
		memoryOrchestrator := buildOrchestrator(instanceProfile, storeInstance, exporter)
		memoryOrchestrator.Initialize(ctx)

		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		server := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port),
			Handler: mux,
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM. The default signal
		// sent by the `kill` command is SIGTERM, which is taken as the
		// graceful shutdown signal for many systems, eg., Kubernetes.
		signal.Notify(c, terminationSignals...)

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start metrics server", "error", err)
				cancel()
			}
		}()

		printGreetings(instanceProfile)

		go func() {
			<-c
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shut down metrics server", "error", err)
			}
			cancel()
		}()

		<-ctx.Done()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	Run: func(_ *cobra.Command, _ []string) {
		_, storeInstance, err := setup(true)
		if err != nil {
			slog.Error("failed to migrate", "error", err)
			os.Exit(1)
		}
		defer storeInstance.Close()
		fmt.Println("Migration completed")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregated memory statistics as JSON and exit",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile, storeInstance, err := setup(false)
		if err != nil {
			slog.Error("failed to load stats", "error", err)
			os.Exit(1)
		}
		defer storeInstance.Close()

		ctx := context.Background()
		memoryOrchestrator := buildOrchestrator(instanceProfile, storeInstance, nil)
		memoryOrchestrator.Initialize(ctx)

		buf, err := json.MarshalIndent(memoryOrchestrator.GetStats(ctx), "", "  ")
		if err != nil {
			slog.Error("failed to encode stats", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(buf))
	},
}

// setup loads the profile, opens the database driver and optionally applies
// migrations.
func setup(migrate bool) (*profile.Profile, *store.Store, error) {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, nil, err
	}

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, nil, err
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	if migrate {
		if err := storeInstance.Migrate(context.Background()); err != nil {
			storeInstance.Close()
			return nil, nil, err
		}
	}
	return instanceProfile, storeInstance, nil
}

// buildOrchestrator wires the memory components. The external collaborators
// (profile facts, fact extractor, knowledge graph) are injected by the host
// application; the standalone binary runs without them.
func buildOrchestrator(instanceProfile *profile.Profile, storeInstance *store.Store, exporter *metrics.PrometheusExporter) *orchestrator.Orchestrator {
	var embedder ai.EmbeddingService
	newEmbedder := func() (ai.EmbeddingService, error) {
		return ai.NewEmbeddingService(&ai.EmbeddingConfig{
			APIKey:     instanceProfile.EmbeddingAPIKey,
			BaseURL:    instanceProfile.EmbeddingBaseURL,
			Model:      instanceProfile.EmbeddingModel,
			Dimensions: instanceProfile.EmbeddingDimensions,
			RPS:        instanceProfile.EmbeddingRPS,
		})
	}

	if instanceProfile.IsEmbeddingEnabled() {
		service, err := newEmbedder()
		if err != nil {
			slog.Warn("embedding service unavailable, semantic paths degraded", "error", err)
		} else {
			embedder = service
		}
	}

	collectiveStore := collective.New(storeInstance, instanceProfile, embedder, exporter)
	goldenCache := golden.New(storeInstance, instanceProfile, newEmbedder, exporter)
	episodicStore := episodic.New(storeInstance, exporter)

	return orchestrator.New(storeInstance, collectiveStore, goldenCache, episodicStore, exporter, nil)
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the metrics/health listener")
	rootCmd.PersistentFlags().Int("port", 28091, "port of the metrics/health listener")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("memoria")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statsCmd)
}

func printGreetings(instanceProfile *profile.Profile) {
	fmt.Printf("Memoria %s started successfully!\n", instanceProfile.Version)

	if instanceProfile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if instanceProfile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", instanceProfile.DSN)
		}
	}

	fmt.Printf("Database driver: %s\n", instanceProfile.Driver)
	fmt.Printf("Mode: %s\n", instanceProfile.Mode)
	if instanceProfile.Addr == "" {
		fmt.Printf("Metrics listening on port %d\n", instanceProfile.Port)
	} else {
		fmt.Printf("Metrics listening on %s:%d\n", instanceProfile.Addr, instanceProfile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
