package forwarder

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/metrics"
	"codeberg.org/mutker/sensornode/internal/telemetry"
	"codeberg.org/mutker/sensornode/internal/wifi"
	"codeberg.org/mutker/sensornode/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	connectErrs []error // consumed per call, nil-padded
	connects    int
	up          bool
}

func (f *fakeLink) Connect(_ context.Context) error {
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	f.up = true
	return nil
}

func (f *fakeLink) IsUp() bool { return f.up }

type fakeClient struct {
	connectErr error
	sendErrs   []error // consumed per call, nil-padded
	connects   int
	sent       [][]byte
}

func (f *fakeClient) Connect(_ string, _ int, _ string) error {
	f.connects++
	return f.connectErr
}

func (f *fakeClient) SendBinary(data []byte) error {
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, data)
	return nil
}

func noopCollector(t *testing.T) metrics.Collector {
	t.Helper()
	collector, err := metrics.NewService(metrics.Config{Enabled: false})
	require.NoError(t, err)
	return collector
}

func newTestForwarder(t *testing.T, capacity int, link *fakeLink, client *fakeClient) (*Forwarder, *telemetry.Ring) {
	t.Helper()

	ring, err := telemetry.NewRing(capacity)
	require.NoError(t, err)

	cfg := Config{
		Host:      "collector.local",
		Port:      8000,
		Path:      "/",
		NodeID:    "feather",
		Interval:  time.Millisecond,
		BatchSize: 100,
	}

	return New(cfg, ring, link, client, noopCollector(t)), ring
}

func fill(ring *telemetry.Ring, n int) {
	for i := 0; i < n; i++ {
		ring.Push(telemetry.Sample{Time: float32(i)})
	}
}

func TestForwardSendsOneBatchPerCycle(t *testing.T) {
	link := &fakeLink{up: true}
	client := &fakeClient{}
	f, ring := newTestForwarder(t, 200, link, client)

	fill(ring, 150)

	f.forward(context.Background())

	require.Len(t, client.sent, 1)
	batch, err := wire.Unmarshal(client.sent[0])
	require.NoError(t, err)
	assert.Equal(t, "feather", batch.NodeID)
	assert.Len(t, batch.Samples, 100, "one batch holds at most batch_size samples")
	assert.Equal(t, 50, ring.Len(), "the rest stays buffered for the next cycle")

	f.forward(context.Background())
	require.Len(t, client.sent, 2)
	batch, err = wire.Unmarshal(client.sent[1])
	require.NoError(t, err)
	assert.Len(t, batch.Samples, 50)
	assert.Equal(t, float32(100), batch.Samples[0].Time, "drain preserves insertion order across cycles")
}

func TestForwardEmptyRingSendsNothing(t *testing.T) {
	client := &fakeClient{}
	f, _ := newTestForwarder(t, 16, &fakeLink{up: true}, client)

	f.forward(context.Background())
	assert.Empty(t, client.sent)
}

func TestSendFailureLosesBatchButLoopContinues(t *testing.T) {
	link := &fakeLink{up: true}
	client := &fakeClient{sendErrs: []error{errors.New().New(errors.ErrOperationFailed)}}
	f, ring := newTestForwarder(t, 200, link, client)

	fill(ring, 120)

	f.forward(context.Background())
	assert.Empty(t, client.sent, "failed batch is not delivered")
	assert.Equal(t, 20, ring.Len(), "failed batch is gone from the ring: best-effort loss")

	f.forward(context.Background())
	require.Len(t, client.sent, 1, "next cycle proceeds on the same socket")
	batch, err := wire.Unmarshal(client.sent[0])
	require.NoError(t, err)
	assert.Len(t, batch.Samples, 20)
}

func TestConnectRetriesTransientLinkFailure(t *testing.T) {
	link := &fakeLink{connectErrs: []error{
		errors.New().New(wifi.ErrAssociationFailed),
		errors.New().New(wifi.ErrAssociationFailed),
	}}
	client := &fakeClient{}
	f, _ := newTestForwarder(t, 16, link, client)

	err := f.connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, link.connects)
	assert.Equal(t, 1, client.connects)
}

func TestConnectConfigErrorIsNotRetried(t *testing.T) {
	link := &fakeLink{connectErrs: []error{
		errors.New().New(wifi.ErrSSIDMissing),
		nil, nil, nil,
	}}
	client := &fakeClient{}
	f, _ := newTestForwarder(t, 16, link, client)

	err := f.connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, link.connects, "hard configuration errors fail fast")
	assert.Equal(t, 0, client.connects, "socket is never opened without a link")
}

func TestConnectSocketFailureIsFatal(t *testing.T) {
	link := &fakeLink{}
	client := &fakeClient{connectErr: errors.New().New(errors.ErrOperationFailed)}
	f, _ := newTestForwarder(t, 16, link, client)

	err := f.connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInitSocket))
}

func TestRunStopsOnCancel(t *testing.T) {
	link := &fakeLink{}
	client := &fakeClient{}
	f, ring := newTestForwarder(t, 200, link, client)

	fill(ring, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(client.sent) >= 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
