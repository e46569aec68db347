package telemetry

import (
	"sync"

	"codeberg.org/mutker/sensornode/internal/errors"
)

const DefaultCapacity = 128

// Ring is a fixed-capacity FIFO buffer of samples shared between the
// sampler and the forwarder. When full, Push evicts the oldest entry so
// the producer never blocks. A single mutex guards the whole structure;
// it is never held across I/O.
type Ring struct {
	mu      sync.Mutex
	buf     []Sample
	head    int
	length  int
	pushed  uint64
	dropped uint64
}

func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, errors.New().WithData(errors.ErrInvalidArgument, "ring capacity must be positive")
	}

	return &Ring{buf: make([]Sample, capacity)}, nil
}

// Push appends a sample, evicting the oldest one when the ring is full.
// It never fails and never blocks beyond the mutex wait.
func (r *Ring) Push(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.length == len(r.buf) {
		// Overwrite the oldest unsent sample
		r.buf[r.head] = s
		r.head = (r.head + 1) % len(r.buf)
		r.dropped++
	} else {
		r.buf[(r.head+r.length)%len(r.buf)] = s
		r.length++
	}
	r.pushed++
}

// DrainUpTo removes and returns at most n of the oldest samples in
// insertion order. It returns an empty slice when the ring is empty and
// never blocks waiting for data.
func (r *Ring) DrainUpTo(n int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.length {
		n = r.length
	}
	if n <= 0 {
		return nil
	}

	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head = (r.head + n) % len(r.buf)
	r.length -= n

	return out
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.length
}

// Pushed returns the total number of samples ever pushed.
func (r *Ring) Pushed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pushed
}

// Dropped returns the number of samples lost to overwrites.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dropped
}
