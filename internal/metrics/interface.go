package metrics

import (
	"context"
	"time"
)

// Collector records pipeline counter snapshots.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Snapshot is one observation of the pipeline counters.
type Snapshot struct {
	Timestamp    time.Time
	Sampled      uint64 // samples ever pushed into the ring
	Dropped      uint64 // samples lost to ring overwrites
	Buffered     int    // samples currently in the ring
	Batches      uint64 // batches sent since startup
	SendFailures uint64 // failed sends since startup
	LinkUp       bool
}
