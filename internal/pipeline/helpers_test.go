package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/stretchr/testify/require"
)

const (
	lineA1B2      = `{"icao":"A1B2","ownop":"Jane Doe","reg":"N123","icaotype":"C172","year":"1999","manufacturer":"Cessna","model":"172","short_type":"L1P","mil":false}`
	lineA1C3      = `{"icao":"A1C3","ownop":"CANCELLED/NOT ASSIGNED","reg":"N999","icaotype":"PA28","year":"1975","manufacturer":"Piper","model":"PA-28","short_type":"L1P","mil":false}`
	lineAE01      = `{"icao":"AE0123","ownop":"United States Air Force","reg":"92-3021","icaotype":"C17","year":1992,"manufacturer":"Boeing","model":"C-17A Globemaster III","short_type":"L4J","mil":true}`
	line4CA1      = `{"icao":"4CA1F2","ownop":"Ryanair","reg":"EI-DCL","icaotype":"B738","year":"2004","manufacturer":"Boeing","model":"737-8AS","short_type":"L2J","mil":false}`
	line4CA1Later = `{"icao":"4CA1F2","ownop":"Buzz","reg":"SP-RKA","icaotype":"B738","year":"2004","manufacturer":"Boeing","model":"737-8AS","short_type":"L2J","mil":false}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFeed writes lines as a newline-delimited feed file and returns its path.
func writeFeed(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "aircraft.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

// fakeFetcher copies a fixed feed into the work dir, like the real fetcher
// leaves its decompressed working file.
type fakeFetcher struct {
	workDir string
	lines   []string
	err     error
	calls   int
}

func (f *fakeFetcher) URL() string { return "https://feed.example.test/basic-ac-db.json.gz" }

func (f *fakeFetcher) Fetch(_ context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.workDir, "aircraft.ndjson")
	if err := os.WriteFile(path, []byte(strings.Join(f.lines, "\n")+"\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []domain.BuildSummary
	err       error
}

func (n *recordingNotifier) Notify(_ context.Context, s domain.BuildSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, s)
	return n.err
}
