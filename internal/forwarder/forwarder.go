// Package forwarder drains buffered samples on a fixed period and sends
// them as one framed binary message per cycle. Delivery is best effort:
// a batch is removed from the ring before the send, so a failed send
// loses that batch. There is no durable retry queue.
package forwarder

import (
	"context"
	"time"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/logger"
	"codeberg.org/mutker/sensornode/internal/metrics"
	"codeberg.org/mutker/sensornode/internal/telemetry"
	"codeberg.org/mutker/sensornode/internal/wifi"
	"codeberg.org/mutker/sensornode/internal/wire"
	"github.com/cenkalti/backoff/v4"
)

const (
	connectMaxElapsed = 2 * time.Minute
	connectMaxRetries = 8
)

// Link is the narrow view of the connection manager the forwarder needs.
type Link interface {
	Connect(ctx context.Context) error
	IsUp() bool
}

// Client is the framing client carrying outbound messages.
type Client interface {
	Connect(host string, port int, path string) error
	SendBinary(data []byte) error
}

type Config struct {
	Host      string
	Port      int
	Path      string
	NodeID    string
	Interval  time.Duration
	BatchSize int
}

type Forwarder struct {
	cfg       Config
	ring      *telemetry.Ring
	link      Link
	client    Client
	collector metrics.Collector

	batches      uint64
	sendFailures uint64
}

func New(cfg Config, ring *telemetry.Ring, link Link, client Client, collector metrics.Collector) *Forwarder {
	return &Forwarder{
		cfg:       cfg,
		ring:      ring,
		link:      link,
		client:    client,
		collector: collector,
	}
}

// Run brings up the link and the socket, then forwards batches until
// the context is canceled. Startup failures are fatal for this loop and
// returned to the caller; steady-state send failures are logged and the
// loop keeps going on the same socket.
func (f *Forwarder) Run(ctx context.Context) error {
	if err := f.connect(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", f.cfg.Interval).
		Int("batch_size", f.cfg.BatchSize).
		Msg("Forwarder started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Forwarder stopped")
			return nil
		case <-ticker.C:
			f.forward(ctx)
		}
	}
}

// connect reaches the Connected link state with bounded exponential
// backoff, then opens the socket session. Hard configuration errors are
// not retried.
func (f *Forwarder) connect(ctx context.Context) error {
	errFactory := errors.New()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed

	err := backoff.Retry(func() error {
		if err := f.link.Connect(ctx); err != nil {
			if wifi.IsConfigError(err) {
				return backoff.Permanent(err)
			}
			logger.Warn().Err(err).Msg("Link connect failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectMaxRetries), ctx))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitLink, err)
	}

	err = backoff.Retry(func() error {
		if err := f.client.Connect(f.cfg.Host, f.cfg.Port, f.cfg.Path); err != nil {
			logger.Warn().Err(err).Msg("Socket connect failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectMaxRetries), ctx))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitSocket, err)
	}

	logger.Info().
		Str("host", f.cfg.Host).
		Int("port", f.cfg.Port).
		Str("path", f.cfg.Path).
		Msg("Connected")

	return nil
}

// forward runs one cycle: drain, encode, send.
func (f *Forwarder) forward(ctx context.Context) {
	samples := f.ring.DrainUpTo(f.cfg.BatchSize)
	if len(samples) > 0 {
		payload := wire.Marshal(wire.Batch{NodeID: f.cfg.NodeID, Samples: samples})

		if err := f.client.SendBinary(payload); err != nil {
			// The batch is already out of the ring; it is lost
			f.sendFailures++
			logger.Error().Err(err).Int("samples", len(samples)).Msg("Failed to send batch")
		} else {
			f.batches++
			logger.Debug().Int("samples", len(samples)).Msg("Sent data")
		}
	}

	snapshot := &metrics.Snapshot{
		Timestamp:    time.Now(),
		Sampled:      f.ring.Pushed(),
		Dropped:      f.ring.Dropped(),
		Buffered:     f.ring.Len(),
		Batches:      f.batches,
		SendFailures: f.sendFailures,
		LinkUp:       f.link.IsUp(),
	}
	if err := f.collector.Record(ctx, snapshot); err != nil {
		logger.Debug().Err(err).Msg("Metrics record failed")
	}
}
