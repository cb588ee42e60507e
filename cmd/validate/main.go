// Command validate checks a built aircraft database directory against the
// feed it was built from. It verifies that cancelled registrations were
// dropped, that each aircraft sits in the partition named by its icao prefix,
// that every record carries exactly the compact field set, and that the last
// feed line for an icao is the one that was kept.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed data/mock/basic-ac-db.json.gz \
//	  -output-dir aircraft
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

var compactKeys = []string{"i", "r", "it", "y", "m", "mo", "o", "st", "ml"}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// feedSet is the expected database derived from the feed.
type feedSet struct {
	lines     int
	cancelled map[string]bool
	expected  map[string]domain.CompactRecord
}

// outputRecord is one record as found on disk.
type outputRecord struct {
	file   domain.PartitionKey
	key    string
	fields map[string]json.RawMessage
}

func main() {
	feedPath := flag.String("feed", "", "path to the feed (gzip or plain NDJSON)")
	outputDir := flag.String("output-dir", "", "directory containing partition files")
	flag.Parse()

	if *feedPath == "" || *outputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*feedPath, *outputDir); code != 0 {
		os.Exit(code)
	}
}

func run(feedPath, outputDir string) int {
	fmt.Println("=== Aircraft Database Validation ===")
	fmt.Println()

	feed, err := loadFeed(feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load feed: %v\n", err)
		return 1
	}

	output, err := loadOutput(outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load output: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateFilter(output),
		validatePlacement(output),
		validateFieldSet(output),
		validateLastWriteWins(feed, output),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d feed lines, %d expected aircraft, %d on disk\n",
		feed.lines, len(feed.expected), len(output))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadFeed(path string) (*feedSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	set := &feedSet{
		cancelled: make(map[string]bool),
		expected:  make(map[string]domain.CompactRecord),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		set.lines++

		raw, err := domain.ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", set.lines, err)
		}
		if raw.Cancelled() {
			set.cancelled[raw.ICAO()] = true
			continue
		}
		rec, err := domain.Remap(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", set.lines, err)
		}
		set.expected[rec.ICAO] = rec
	}
	return set, sc.Err()
}

func loadOutput(dir string) ([]outputRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var records []outputRecord
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var part map[string]map[string]json.RawMessage
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		file := domain.PartitionKey(strings.TrimSuffix(filepath.Base(path), ".json"))
		for key, fields := range part {
			records = append(records, outputRecord{file: file, key: key, fields: fields})
		}
	}
	return records, nil
}

// ── Phase 1: Filter ──
// No record on disk may carry the cancellation sentinel.

func validateFilter(output []outputRecord) *phase {
	p := &phase{name: "Phase 1: Cancelled registrations dropped"}
	for _, rec := range output {
		var operator string
		if err := json.Unmarshal(rec.fields["o"], &operator); err != nil {
			continue
		}
		if operator == domain.CancelledOperator {
			p.errorf("%s: %s has cancelled operator", rec.file.FileName(), rec.key)
		}
	}
	return p
}

// ── Phase 2: Placement ──
// Each record lives in the file named by its icao prefix, under its own icao.

func validatePlacement(output []outputRecord) *phase {
	p := &phase{name: "Phase 2: Partition placement"}
	for _, rec := range output {
		var icao string
		if err := json.Unmarshal(rec.fields["i"], &icao); err != nil {
			p.errorf("%s: %s: i is not a string", rec.file.FileName(), rec.key)
			continue
		}
		if icao != rec.key {
			p.errorf("%s: key %q holds icao %q", rec.file.FileName(), rec.key, icao)
		}
		if want := domain.KeyFor(icao); want != rec.file {
			p.errorf("%s: icao %q belongs in %s", rec.file.FileName(), icao, want.FileName())
		}
	}
	return p
}

// ── Phase 3: Field set ──

func validateFieldSet(output []outputRecord) *phase {
	p := &phase{name: "Phase 3: Compact field set"}
	for _, rec := range output {
		for _, k := range compactKeys {
			if _, ok := rec.fields[k]; !ok {
				p.errorf("%s: %s missing %q", rec.file.FileName(), rec.key, k)
			}
		}
		if len(rec.fields) != len(compactKeys) {
			p.errorf("%s: %s has %d fields, want %d", rec.file.FileName(), rec.key, len(rec.fields), len(compactKeys))
		}
	}
	return p
}

// ── Phase 4: Last write wins ──
// Disk holds exactly the expected aircraft with the values of their last feed line.

func validateLastWriteWins(feed *feedSet, output []outputRecord) *phase {
	p := &phase{name: "Phase 4: Completeness and last write wins"}

	onDisk := make(map[string]bool, len(output))
	for _, rec := range output {
		onDisk[rec.key] = true
		want, ok := feed.expected[rec.key]
		if !ok {
			if feed.cancelled[rec.key] {
				p.errorf("%s: %s appears only as cancelled in feed", rec.file.FileName(), rec.key)
			} else {
				p.errorf("%s: %s not in feed", rec.file.FileName(), rec.key)
			}
			continue
		}
		compareRecord(p, rec, want)
	}

	for icao := range feed.expected {
		if !onDisk[icao] {
			p.errorf("%s missing from %s", icao, domain.KeyFor(icao).FileName())
		}
	}
	return p
}

func compareRecord(p *phase, rec outputRecord, want domain.CompactRecord) {
	expected := map[string]json.RawMessage{
		"r":  want.Registration,
		"it": want.ICAOType,
		"y":  want.Year,
		"m":  want.Manufacturer,
		"mo": want.Model,
		"o":  want.Operator,
		"st": want.ShortType,
		"ml": want.Military,
	}
	for k, w := range expected {
		if !rawEqual(rec.fields[k], w) {
			p.errorf("%s: %s field %q: expected %s, got %s", rec.file.FileName(), rec.key, k, w, rec.fields[k])
		}
	}
}

// rawEqual compares two JSON values ignoring insignificant whitespace.
func rawEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return false
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
