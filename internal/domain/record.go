package domain

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// CancelledOperator is the ownop sentinel for cancelled or unassigned registrations.
const CancelledOperator = "CANCELLED/NOT ASSIGNED"

// RequiredFields lists the feed fields every record must carry.
var RequiredFields = []string{
	"icao", "ownop", "reg", "icaotype", "year", "manufacturer", "model", "short_type", "mil",
}

// RawRecord is one decoded feed line. Values are kept raw so they pass
// through to the output byte-for-byte.
type RawRecord map[string]json.RawMessage

// CompactRecord is the short-keyed form written to partition files.
// Field order fixes the key order in the output.
type CompactRecord struct {
	ICAO         string          `json:"i"`
	Registration json.RawMessage `json:"r"`
	ICAOType     json.RawMessage `json:"it"`
	Year         json.RawMessage `json:"y"`
	Manufacturer json.RawMessage `json:"m"`
	Model        json.RawMessage `json:"mo"`
	Operator     json.RawMessage `json:"o"`
	ShortType    json.RawMessage `json:"st"`
	Military     json.RawMessage `json:"ml"`
}

// PartitionKey names one output shard: the first two characters of an icao code.
type PartitionKey string

// FileName returns the partition's output file name.
func (k PartitionKey) FileName() string {
	return string(k) + ".json"
}

// ParseRecord decodes one feed line and checks that every required field is present.
func ParseRecord(line []byte) (RawRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: record is not a JSON object", ErrDecode)
	}
	for _, field := range RequiredFields {
		if _, ok := rec[field]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrSchema, field)
		}
	}
	return rec, nil
}

// ICAO returns the record's icao as a string. Non-string JSON values use
// their literal text, so 123456 becomes "123456".
func (r RawRecord) ICAO() string {
	return stringValue(r["icao"])
}

// Cancelled reports whether the record's operator is the cancellation sentinel.
func (r RawRecord) Cancelled() bool {
	var ownop string
	if err := json.Unmarshal(r["ownop"], &ownop); err != nil {
		return false
	}
	return ownop == CancelledOperator
}

// Remap converts a raw record to its compact form.
func Remap(r RawRecord) (CompactRecord, error) {
	icao := r.ICAO()
	if icao == "" {
		return CompactRecord{}, fmt.Errorf("%w: empty icao", ErrSchema)
	}
	return CompactRecord{
		ICAO:         icao,
		Registration: r["reg"],
		ICAOType:     r["icaotype"],
		Year:         r["year"],
		Manufacturer: r["manufacturer"],
		Model:        r["model"],
		Operator:     r["ownop"],
		ShortType:    r["short_type"],
		Military:     r["mil"],
	}, nil
}

// KeyFor returns the partition key for an icao code. Codes shorter than two
// characters are their own key.
func KeyFor(icao string) PartitionKey {
	if utf8.RuneCountInString(icao) <= 2 {
		return PartitionKey(icao)
	}
	_, first := utf8.DecodeRuneInString(icao)
	_, second := utf8.DecodeRuneInString(icao[first:])
	return PartitionKey(icao[:first+second])
}

// PartitionMap groups compact records by partition key, then by icao.
type PartitionMap map[PartitionKey]map[string]CompactRecord

// Put inserts rec under its partition, replacing any earlier record with the
// same icao. It reports whether a record was replaced.
func (m PartitionMap) Put(rec CompactRecord) bool {
	key := KeyFor(rec.ICAO)
	part, ok := m[key]
	if !ok {
		part = make(map[string]CompactRecord)
		m[key] = part
	}
	_, replaced := part[rec.ICAO]
	part[rec.ICAO] = rec
	return replaced
}

// Keys returns the partition keys in sorted order.
func (m PartitionMap) Keys() []PartitionKey {
	keys := make([]PartitionKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the total number of records across all partitions.
func (m PartitionMap) Len() int {
	n := 0
	for _, part := range m {
		n += len(part)
	}
	return n
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
