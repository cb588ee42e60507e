package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedBody = `{"icao":"A1B2C3","reg":"N1","icaotype":"C172","year":"1999","manufacturer":"Cessna","model":"172","ownop":"Bob","short_type":"L1P","mil":false}
{"icao":"A1FFFF","reg":"N2","icaotype":"C172","year":"2001","manufacturer":"Cessna","model":"172","ownop":"CANCELLED/NOT ASSIGNED","short_type":"L1P","mil":false}
`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	root := NewRootCmd(observability.NewMetricsForTesting())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "adsbdb dev\n", out)
}

func TestBuild_WritesPartitions(t *testing.T) {
	body := gzipped(t, feedBody)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "aircraft")
	workDir := t.TempDir()

	out, err := run(t, "build", "--feed-url", srv.URL, "--output-dir", outDir, "--work-dir", workDir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 aircraft in 1 partitions")

	data, err := os.ReadFile(filepath.Join(outDir, "A1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"A1B2C3"`)
	assert.NotContains(t, string(data), `"A1FFFF"`)

	_, err = os.Stat(filepath.Join(workDir, "aircraft.ndjson"))
	assert.True(t, os.IsNotExist(err), "working file should be removed")
}

func TestBuild_FetchErrorExitCode(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := run(t, "build", "--feed-url", srv.URL, "--output-dir", t.TempDir(), "--work-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, domain.ExitFetch, domain.ExitCode(err))
}

func TestBuild_SchemaErrorExitCode(t *testing.T) {
	body := gzipped(t, `{"icao":"A1B2C3"}`+"\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	_, err := run(t, "build", "--feed-url", srv.URL, "--output-dir", t.TempDir(), "--work-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, domain.ExitSchema, domain.ExitCode(err))
}

func TestBuild_LenientSkipsBadLines(t *testing.T) {
	body := gzipped(t, "not json\n"+feedBody)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	out, err := run(t, "build", "--lenient", "--feed-url", srv.URL, "--output-dir", t.TempDir(), "--work-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 aircraft")
}

func TestBuild_InvalidFeedURLFlag(t *testing.T) {
	_, err := run(t, "build", "--feed-url", "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_URL")
	assert.Equal(t, domain.ExitOther, domain.ExitCode(err))
}
