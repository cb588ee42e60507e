// Package cli wires configuration, adapters and the build pipeline into the
// adsbdb command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	httpadapter "github.com/couchcryptid/adsb-aircraft-db/internal/adapter/http"
	"github.com/couchcryptid/adsb-aircraft-db/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/adsb-aircraft-db/internal/adapter/kafka"
	"github.com/couchcryptid/adsb-aircraft-db/internal/adapter/store"
	"github.com/couchcryptid/adsb-aircraft-db/internal/config"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
	"github.com/couchcryptid/adsb-aircraft-db/internal/pipeline"
	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// overrides holds flag values that take precedence over loaded config.
type overrides struct {
	feedURL   string
	outputDir string
	workDir   string
	lenient   bool
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	flags   overrides
}

// NewRootCmd creates the adsbdb command tree. Metrics are injected so tests
// can use an unregistered set.
func NewRootCmd(metrics *observability.Metrics) *cobra.Command {
	a := &app{metrics: metrics}

	root := &cobra.Command{
		Use:   "adsbdb",
		Short: "Build a partitioned aircraft lookup database from the ADS-B Exchange registry feed",
		Long: `adsbdb downloads the gzip-compressed aircraft registry, drops cancelled
registrations and writes one JSON file per two-character icao prefix.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.feedURL, "feed-url", "", "feed URL (overrides FEED_URL)")
	pf.StringVar(&a.flags.outputDir, "output-dir", "", "partition output directory (overrides OUTPUT_DIR)")
	pf.StringVar(&a.flags.workDir, "work-dir", "", "directory for temp and working files (overrides WORK_DIR)")
	pf.BoolVar(&a.flags.lenient, "lenient", false, "skip malformed feed lines instead of failing")

	root.AddCommand(newBuildCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.flags.feedURL != "" {
		cfg.FeedURL = a.flags.feedURL
	}
	if a.flags.outputDir != "" {
		cfg.OutputDir = a.flags.outputDir
	}
	if a.flags.workDir != "" {
		cfg.WorkDir = a.flags.workDir
	}
	if cmd.Flags().Changed("lenient") {
		cfg.StrictParsing = !a.flags.lenient
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cfg)
	return nil
}

// newBuilder wires the pipeline. The returned close func releases the notifier.
func (a *app) newBuilder() (*pipeline.Builder, func()) {
	var notifier pipeline.Notifier
	closeFn := func() {}
	if a.cfg.NotifyEnabled {
		n := kafkaadapter.NewNotifier(a.cfg, a.logger)
		notifier = n
		closeFn = func() {
			if err := n.Close(); err != nil {
				a.logger.Error("kafka notifier close error", "error", err)
			}
		}
		a.logger.Info("build notifications enabled", "topic", a.cfg.KafkaTopic, "brokers", a.cfg.KafkaBrokers)
	}

	fetcher := feed.NewFetcher(a.cfg.FeedURL, a.cfg.WorkDir, a.cfg.FetchTimeout, a.metrics, a.logger)
	partitioner := pipeline.NewPartitioner(a.cfg.StrictParsing, a.metrics, a.logger)
	writer := store.NewWriter(a.cfg.OutputDir, a.logger)

	return pipeline.NewBuilder(fetcher, partitioner, writer, notifier, a.logger, a.metrics), closeFn
}

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run one database build and exit",
		Long: `Fetch the feed, partition it and write the partition files once.
Exit codes: 0 success, 1 config or I/O error, 2 fetch, 3 decode, 4 schema, 5 write.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			builder, closeFn := a.newBuilder()
			defer closeFn()

			summary, err := builder.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d aircraft in %d partitions to %s\n",
				summary.Aircraft, len(summary.Partitions), summary.OutputDir)
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Rebuild the database on an interval and serve health, status and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	builder, closeFn := a.newBuilder()
	defer closeFn()

	scheduler := pipeline.NewScheduler(builder, a.cfg.BuildInterval, a.cfg.RetryMaxBackoff, nil, a.logger, a.metrics)
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, builder, a.logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	// Start build scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Run(ctx); err != nil {
			a.logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.logger.Warn("build still running at shutdown deadline")
	}

	a.logger.Info("shutdown complete")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "adsbdb", Version)
		},
	}
}
