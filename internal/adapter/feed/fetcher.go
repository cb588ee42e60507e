package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
	"github.com/klauspost/compress/gzip"
)

// WorkingFileName is the decompressed feed left in the work dir for the partitioner.
const WorkingFileName = "aircraft.ndjson"

const userAgent = "adsb-aircraft-db/1.0"

// Fetcher downloads the gzip-compressed feed and decompresses it to the working file.
type Fetcher struct {
	url        string
	workDir    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher whose whole download is bounded by timeout.
func NewFetcher(url, workDir string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		url:     url,
		workDir: workDir,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// URL returns the feed location.
func (f *Fetcher) URL() string {
	return f.url
}

// WorkingPath returns where Fetch leaves the decompressed feed.
func (f *Fetcher) WorkingPath() string {
	return filepath.Join(f.workDir, WorkingFileName)
}

// Fetch downloads the feed and returns the path of the decompressed working file.
// Nothing is written to disk unless the server answers with a 2xx status.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", domain.ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: get feed: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrFetch, resp.StatusCode, bytes.TrimSpace(body))
	}

	tmpPath, n, err := f.download(resp.Body)
	if err != nil {
		return "", err
	}
	defer f.removeTemp(tmpPath)
	f.metrics.BytesDownloaded.Add(float64(n))

	working := f.WorkingPath()
	if err := f.decompress(tmpPath, working); err != nil {
		return "", err
	}

	elapsed := time.Since(start)
	f.metrics.FetchDuration.Observe(elapsed.Seconds())
	f.logger.Info("feed fetched", "url", f.url, "bytes", n, "working_file", working, "duration", elapsed)
	return working, nil
}

// download streams body into a temp file in the work dir. The temp file is
// removed if the download fails.
func (f *Fetcher) download(body io.Reader) (path string, n int64, err error) {
	tmp, err := os.CreateTemp(f.workDir, "aircraft-*.json.gz")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	path = tmp.Name()
	defer func() {
		if err != nil {
			f.removeTemp(path)
		}
	}()

	src := &trackingReader{r: body}
	n, err = io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		if src.err != nil {
			return "", 0, fmt.Errorf("%w: read body: %w", domain.ErrFetch, err)
		}
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}
	return path, n, nil
}

// decompress gunzips src into dst. A partial dst is removed on failure.
func (f *Fetcher) decompress(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("%w: gzip header: %w", domain.ErrDecode, err)
	}
	defer gz.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create working file: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			f.logger.Warn("remove partial working file failed", "path", dst, "error", rmErr)
		}
	}()

	zr := &trackingReader{r: gz}
	if _, err = io.Copy(out, zr); err != nil {
		out.Close()
		if zr.err != nil {
			return fmt.Errorf("%w: gunzip: %w", domain.ErrDecode, err)
		}
		return fmt.Errorf("write working file: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close working file: %w", err)
	}
	return nil
}

func (f *Fetcher) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("remove temp file failed", "path", path, "error", err)
	}
}

// trackingReader records the first non-EOF read error so a failed copy can be
// blamed on its source rather than its destination.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
