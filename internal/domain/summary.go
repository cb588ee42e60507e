package domain

import (
	"time"

	"github.com/google/uuid"
)

// BuildSummary describes one database build.
type BuildSummary struct {
	RunID      string    `json:"run_id"`
	FeedURL    string    `json:"feed_url"`
	OutputDir  string    `json:"output_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RecordsRead int `json:"records_read"`
	Cancelled   int `json:"cancelled"`
	Skipped     int `json:"skipped"`
	Duplicates  int `json:"duplicates"`
	Aircraft    int `json:"aircraft"`

	Partitions []PartitionKey `json:"partitions"`
}

// NewBuildSummary starts a summary with a fresh run ID, stamped with the package clock.
func NewBuildSummary(feedURL, outputDir string) BuildSummary {
	return BuildSummary{
		RunID:     uuid.NewString(),
		FeedURL:   feedURL,
		OutputDir: outputDir,
		StartedAt: clock.Now().UTC(),
	}
}

// Finish stamps the completion time.
func (s *BuildSummary) Finish() {
	s.FinishedAt = clock.Now().UTC()
}

// Duration returns how long the build took.
func (s BuildSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// BuildOutcome pairs a build summary with the error that ended it, if any.
type BuildOutcome struct {
	Summary BuildSummary
	Err     error
}
