package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
)

// FeedFetcher downloads the feed and returns the path of the decompressed working file.
type FeedFetcher interface {
	Fetch(ctx context.Context) (string, error)
	URL() string
}

// PartitionWriter persists partitions and cleans up the working file.
type PartitionWriter interface {
	WritePartitions(ctx context.Context, partitions domain.PartitionMap) ([]domain.PartitionKey, error)
	RemoveWorkingFile(path string)
	Dir() string
}

// Notifier announces a completed build.
type Notifier interface {
	Notify(ctx context.Context, summary domain.BuildSummary) error
}

// Builder runs one fetch-partition-write build.
type Builder struct {
	fetcher     FeedFetcher
	partitioner *Partitioner
	writer      PartitionWriter
	notifier    Notifier
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool

	mu   sync.Mutex
	last *domain.BuildOutcome
}

// NewBuilder creates a Builder. Pass a nil notifier to disable build notifications.
func NewBuilder(f FeedFetcher, p *Partitioner, w PartitionWriter, n Notifier, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{
		fetcher:     f,
		partitioner: p,
		writer:      w,
		notifier:    n,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a build has succeeded.
func (b *Builder) CheckReadiness(_ context.Context) error {
	if !b.ready.Load() {
		return errors.New("no database build has completed yet")
	}
	return nil
}

// Build fetches the feed, partitions it and writes the partition files.
// The returned summary lists the partitions written even when the build fails.
func (b *Builder) Build(ctx context.Context) (domain.BuildSummary, error) {
	summary := domain.NewBuildSummary(b.fetcher.URL(), b.writer.Dir())
	logger := b.logger.With("run_id", summary.RunID)
	logger.Info("build started", "feed_url", summary.FeedURL, "output_dir", summary.OutputDir)

	start := time.Now()
	err := b.build(ctx, &summary, logger)
	summary.Finish()
	b.metrics.BuildsTotal.WithLabelValues(outcome(err)).Inc()
	b.record(summary, err)

	if err != nil {
		logger.Error("build failed",
			"error", err,
			"partitions_written", len(summary.Partitions),
		)
		return summary, err
	}

	b.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	b.metrics.LastSuccess.Set(float64(summary.FinishedAt.Unix()))
	b.ready.Store(true)
	logger.Info("build complete",
		"aircraft", summary.Aircraft,
		"partitions", len(summary.Partitions),
		"duration", summary.Duration(),
	)

	b.notify(ctx, summary, logger)
	return summary, nil
}

// LastBuild returns the most recent build outcome, if any build has run.
func (b *Builder) LastBuild() (domain.BuildOutcome, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return domain.BuildOutcome{}, false
	}
	return *b.last, true
}

func (b *Builder) record(summary domain.BuildSummary, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = &domain.BuildOutcome{Summary: summary, Err: err}
}

func (b *Builder) build(ctx context.Context, summary *domain.BuildSummary, logger *slog.Logger) error {
	path, err := b.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	partitions, stats, err := b.partitioner.Partition(ctx, path)
	if err != nil {
		logger.Warn("working file kept for inspection", "path", path)
		return err
	}
	summary.RecordsRead = stats.Read
	summary.Cancelled = stats.Cancelled
	summary.Skipped = stats.Skipped
	summary.Duplicates = stats.Duplicates
	summary.Aircraft = partitions.Len()

	written, err := b.writer.WritePartitions(ctx, partitions)
	summary.Partitions = written
	b.metrics.PartitionsWritten.Add(float64(len(written)))
	if err != nil {
		return err
	}

	b.writer.RemoveWorkingFile(path)
	return nil
}

func (b *Builder) notify(ctx context.Context, summary domain.BuildSummary, logger *slog.Logger) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, summary); err != nil {
		b.metrics.NotifyErrors.Inc()
		logger.Warn("build notification failed", "error", err)
	}
}

// outcome labels a build result for the builds_total metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrFetch):
		return "fetch_error"
	case errors.Is(err, domain.ErrSchema):
		return "schema_error"
	case errors.Is(err, domain.ErrDecode):
		return "decode_error"
	case errors.Is(err, domain.ErrWrite):
		return "write_error"
	default:
		return "error"
	}
}
