package housekeeping

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/poebridge/pkg/assistants"
)

// FileStats reports the size of the file registry.
type FileStats interface {
	Stats(ctx context.Context) (count int, bytes int64, err error)
}

// RecordCounter reports the size of the assistants store.
type RecordCounter interface {
	Counts() assistants.Counts
}

// Sink receives the collected statistics.
type Sink interface {
	SetFileStats(count int, bytes int64)
	SetRecords(kind string, n int)
	ObserveHousekeeping(ok bool)
}

// Job gathers store statistics and publishes them to a Sink.
type Job struct {
	files      FileStats
	assistants RecordCounter
	sink       Sink
	logger     *slog.Logger
}

// NewJob returns a job over the given sources. Either source may be nil.
func NewJob(files FileStats, counter RecordCounter, sink Sink) *Job {
	return &Job{
		files:      files,
		assistants: counter,
		sink:       sink,
		logger:     slog.Default().With("component", "housekeeping"),
	}
}

// Run collects one round of statistics.
func (j *Job) Run(ctx context.Context) error {
	var err error
	if j.files != nil {
		var (
			count int
			bytes int64
		)
		count, bytes, err = j.files.Stats(ctx)
		if err != nil {
			err = fmt.Errorf("file stats: %w", err)
		} else {
			j.sink.SetFileStats(count, bytes)
			j.logger.Debug("file registry stats", "files", count, "bytes", bytes)
		}
	}

	if j.assistants != nil {
		c := j.assistants.Counts()
		j.sink.SetRecords("assistants", c.Assistants)
		j.sink.SetRecords("threads", c.Threads)
		j.sink.SetRecords("messages", c.Messages)
		j.sink.SetRecords("runs", c.Runs)
	}

	j.sink.ObserveHousekeeping(err == nil)
	return err
}
