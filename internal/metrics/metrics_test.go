package metrics_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sensornode/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledUsesNoop(t *testing.T) {
	collector, err := metrics.NewService(metrics.Config{Enabled: false})
	require.NoError(t, err)

	err = collector.Record(context.Background(), &metrics.Snapshot{Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, collector.Close())
}

func TestEnabledWithoutPathFails(t *testing.T) {
	_, err := metrics.NewService(metrics.Config{Enabled: true})
	require.Error(t, err)
}

func TestRecordAndReadBack(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "metrics.db")
	collector, err := metrics.NewService(metrics.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)

	now := time.Now()
	snapshot := &metrics.Snapshot{
		Timestamp:    now,
		Sampled:      1200,
		Dropped:      72,
		Buffered:     28,
		Batches:      11,
		SendFailures: 1,
		LinkUp:       true,
	}
	require.NoError(t, collector.Record(context.Background(), snapshot))
	require.NoError(t, collector.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var (
		sampled, dropped, buffered, batches, sendFailures uint64
		linkUp                                            int
	)
	row := db.QueryRow(`
        SELECT sampled, dropped, buffered, batches, send_failures, link_up
        FROM pipeline_metrics WHERE timestamp = ?`, now.Unix())
	require.NoError(t, row.Scan(&sampled, &dropped, &buffered, &batches, &sendFailures, &linkUp))

	assert.Equal(t, uint64(1200), sampled)
	assert.Equal(t, uint64(72), dropped)
	assert.Equal(t, uint64(28), buffered)
	assert.Equal(t, uint64(11), batches)
	assert.Equal(t, uint64(1), sendFailures)
	assert.Equal(t, 1, linkUp)
}

func TestRecordNilSnapshot(t *testing.T) {
	collector, err := metrics.NewService(metrics.Config{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "metrics.db"),
	})
	require.NoError(t, err)
	defer collector.Close()

	err = collector.Record(context.Background(), nil)
	require.Error(t, err)
}
