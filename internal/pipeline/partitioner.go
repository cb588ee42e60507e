package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
)

// Stats counts what the partitioner saw in one pass over the feed.
type Stats struct {
	Read       int
	Cancelled  int
	Skipped    int
	Duplicates int
}

// Partitioner groups feed records by partition key.
type Partitioner struct {
	strict  bool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPartitioner creates a Partitioner. In strict mode the first malformed
// line aborts the pass; otherwise it is logged and skipped.
func NewPartitioner(strict bool, metrics *observability.Metrics, logger *slog.Logger) *Partitioner {
	return &Partitioner{strict: strict, metrics: metrics, logger: logger}
}

// Partition reads the newline-delimited feed at path into a PartitionMap.
// The whole feed is held in memory.
func (p *Partitioner) Partition(ctx context.Context, path string) (domain.PartitionMap, Stats, error) {
	var stats Stats

	f, err := os.Open(path)
	if err != nil {
		return nil, stats, fmt.Errorf("open working file: %w", err)
	}
	defer f.Close()

	partitions := domain.PartitionMap{}
	r := bufio.NewReaderSize(f, 64*1024)
	for lineNum := 1; ; lineNum++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, stats, fmt.Errorf("read working file: %w", readErr)
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			if err := p.add(partitions, line, &stats); err != nil {
				if p.strict {
					return nil, stats, fmt.Errorf("line %d: %w", lineNum, err)
				}
				stats.Skipped++
				p.metrics.RecordsSkipped.Inc()
				p.logger.Warn("skipping malformed line", "line", lineNum, "error", err)
			}
		}

		if readErr != nil {
			break
		}
	}

	p.logger.Info("feed partitioned",
		"records", stats.Read,
		"cancelled", stats.Cancelled,
		"skipped", stats.Skipped,
		"duplicates", stats.Duplicates,
		"partitions", len(partitions),
	)
	return partitions, stats, nil
}

func (p *Partitioner) add(partitions domain.PartitionMap, line []byte, stats *Stats) error {
	rec, err := domain.ParseRecord(line)
	if err != nil {
		return err
	}
	if rec.Cancelled() {
		stats.Read++
		stats.Cancelled++
		p.metrics.RecordsRead.Inc()
		p.metrics.RecordsCancelled.Inc()
		return nil
	}
	compact, err := domain.Remap(rec)
	if err != nil {
		return err
	}

	stats.Read++
	p.metrics.RecordsRead.Inc()
	if partitions.Put(compact) {
		stats.Duplicates++
		p.metrics.RecordsDuplicate.Inc()
	}
	return nil
}
