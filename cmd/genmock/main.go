// Command genmock writes a synthetic gzip-compressed aircraft registry feed
// for local builds and for exercising the validate command. The feed mixes
// civil and military records, cancelled registrations and repeated icao codes
// so every filtering and overwrite rule is hit.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/basic-ac-db.json.gz -count 5000 -seed 42
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

type aircraftType struct {
	icaoType     string
	manufacturer string
	model        string
	shortType    string
	military     bool
}

var types = []aircraftType{
	{icaoType: "C172", manufacturer: "Cessna", model: "172S Skyhawk SP", shortType: "L1P"},
	{icaoType: "PA28", manufacturer: "Piper", model: "PA-28-181 Archer", shortType: "L1P"},
	{icaoType: "B738", manufacturer: "Boeing", model: "737-8AS", shortType: "L2J"},
	{icaoType: "A320", manufacturer: "Airbus", model: "A320-214", shortType: "L2J"},
	{icaoType: "E75L", manufacturer: "Embraer", model: "ERJ 170-200 LR", shortType: "L2J"},
	{icaoType: "R44", manufacturer: "Robinson", model: "R44 Raven II", shortType: "H1P"},
	{icaoType: "C17", manufacturer: "Boeing", model: "C-17A Globemaster III", shortType: "L4J", military: true},
	{icaoType: "H60", manufacturer: "Sikorsky", model: "UH-60M Black Hawk", shortType: "H2T", military: true},
}

var operators = []string{
	"Private", "Ryanair", "Southwest Airlines Co", "Lufthansa", "Civil Air Patrol",
	"United States Air Force", "Flight Safety International",
}

// stats counts what the generator wrote so expectations can be printed.
type stats struct {
	lines      int
	cancelled  int
	duplicates int
	partitions map[domain.PartitionKey]int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the gzip NDJSON feed")
	count := flag.Int("count", 1000, "number of distinct aircraft")
	seed := flag.Uint64("seed", 1, "random seed for reproducible output")
	cancelledPct := flag.Int("cancelled-pct", 5, "percent of lines carrying a cancelled registration")
	dupPct := flag.Int("dup-pct", 3, "percent of aircraft repeated later in the feed with new values")
	flag.Parse()

	if *out == "" || *count <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -count > 0")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	records := generate(rng, *count, *cancelledPct, *dupPct)

	s, err := writeFeed(*out, records)
	if err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	log.Printf("wrote feed: %s", *out)

	printStats(s)
	return nil
}

func generate(rng *rand.Rand, count, cancelledPct, dupPct int) []map[string]any {
	seen := make(map[string]bool, count)
	records := make([]map[string]any, 0, count+count*dupPct/100)
	var repeats []map[string]any

	for len(seen) < count {
		icao := fmt.Sprintf("%06X", rng.IntN(0x1000000))
		if seen[icao] {
			continue
		}
		seen[icao] = true

		rec := newRecord(rng, icao)
		if rng.IntN(100) < cancelledPct {
			rec["ownop"] = domain.CancelledOperator
		}
		records = append(records, rec)

		if rng.IntN(100) < dupPct {
			later := newRecord(rng, icao)
			repeats = append(repeats, later)
		}
	}

	// Repeats go after every original so the later line wins.
	return append(records, repeats...)
}

func newRecord(rng *rand.Rand, icao string) map[string]any {
	t := types[rng.IntN(len(types))]
	rec := map[string]any{
		"icao":         icao,
		"reg":          registration(rng),
		"icaotype":     t.icaoType,
		"manufacturer": t.manufacturer,
		"model":        t.model,
		"ownop":        operators[rng.IntN(len(operators))],
		"short_type":   t.shortType,
		"mil":          t.military,
	}

	// The upstream feed is inconsistent about year: string, number or null.
	switch rng.IntN(10) {
	case 0:
		rec["year"] = nil
	case 1:
		rec["year"] = 1960 + rng.IntN(64)
	default:
		rec["year"] = fmt.Sprintf("%d", 1960+rng.IntN(64))
	}

	// Some registry rows omit the registration entirely.
	if rng.IntN(20) == 0 {
		rec["reg"] = nil
	}
	return rec
}

func registration(rng *rand.Rand) string {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	if rng.IntN(2) == 0 {
		return fmt.Sprintf("N%d%c%c", 100+rng.IntN(900), letters[rng.IntN(len(letters))], letters[rng.IntN(len(letters))])
	}
	var b strings.Builder
	b.WriteString([]string{"G-", "D-", "EI-", "F-", "SP-"}[rng.IntN(5)])
	for range 4 {
		b.WriteByte(letters[rng.IntN(len(letters))])
	}
	return b.String()
}

func writeFeed(path string, records []map[string]any) (s stats, err error) {
	s.partitions = make(map[domain.PartitionKey]int)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return s, err
	}
	f, err := os.Create(path)
	if err != nil {
		return s, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	zw := gzip.NewWriter(f)
	bw := bufio.NewWriter(zw)

	// Simulate the builder to report the expected partition contents.
	final := make(map[string]bool)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return s, fmt.Errorf("marshal record: %w", err)
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return s, err
		}
		s.lines++

		icao := rec["icao"].(string)
		if rec["ownop"] == domain.CancelledOperator {
			s.cancelled++
			continue
		}
		if final[icao] {
			s.duplicates++
			continue
		}
		final[icao] = true
		s.partitions[domain.KeyFor(icao)]++
	}

	if err := bw.Flush(); err != nil {
		return s, err
	}
	return s, zw.Close()
}

func printStats(s stats) {
	aircraft := 0
	for _, n := range s.partitions {
		aircraft += n
	}

	fmt.Println("\n=== Expected build results ===")
	fmt.Printf("Lines: %d\n", s.lines)
	fmt.Printf("Cancelled: %d\n", s.cancelled)
	fmt.Printf("Duplicates: %d\n", s.duplicates)
	fmt.Printf("Aircraft: %d\n", aircraft)
	fmt.Printf("Partitions: %d\n", len(s.partitions))
}
