// Package dump periodically serializes the shared aggregate to a sink.
package dump

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/codefionn/sqmean/internal/aggregate"
	"github.com/codefionn/sqmean/internal/consts"
	"github.com/codefionn/sqmean/internal/logger"
)

// Source provides the entries to snapshot.
type Source interface {
	Snapshot() []aggregate.Entry
}

// Dumper writes a snapshot of its source to its sink once per interval.
type Dumper struct {
	src      Source
	sink     Sink
	interval time.Duration
	log      *logger.Logger

	done    chan struct{}
	runOnce sync.Once
}

// NewDumper creates a dumper. A non-positive interval uses consts.DumpInterval.
func NewDumper(src Source, sink Sink, interval time.Duration, log *logger.Logger) *Dumper {
	if interval <= 0 {
		interval = consts.DumpInterval
	}
	if log == nil {
		log = logger.Global()
	}
	return &Dumper{
		src:      src,
		sink:     sink,
		interval: interval,
		log:      log.WithPrefix("dumper"),
		done:     make(chan struct{}),
	}
}

// Run writes a snapshot on every tick until ctx is cancelled. A tick already
// in progress completes; no tick starts after cancellation. Run may only be
// called once; further calls return immediately.
func (d *Dumper) Run(ctx context.Context) {
	first := false
	d.runOnce.Do(func() { first = true })
	if !first {
		return
	}
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Debug("started, interval %s", d.interval)
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("cancelled")
			return
		case <-ticker.C:
			// Both cases may be ready at once; cancellation wins.
			if ctx.Err() != nil {
				d.log.Debug("cancelled")
				return
			}
			if err := d.DumpOnce(); err != nil {
				d.log.Warn("snapshot skipped: %v", err)
			}
		}
	}
}

// Done is closed when Run returns.
func (d *Dumper) Done() <-chan struct{} {
	return d.done
}

// DumpOnce writes a single snapshot. The source is only locked while its
// entries are copied.
func (d *Dumper) DumpOnce() error {
	entries := d.src.Snapshot()
	data := Marshal(entries)

	if err := d.sink.WriteSnapshot(data); err != nil {
		return err
	}
	d.log.Debug("wrote %d entries, %d bytes, xxhash=%016x", len(entries), len(data), xxhash.Sum64(data))
	return nil
}
