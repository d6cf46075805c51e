package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tomszw/gallerysync/internal/ingest"
)

type fakeSyncer struct {
	calls atomic.Int64
}

func (f *fakeSyncer) SyncAllActive(context.Context) (ingest.Summary, error) {
	f.calls.Add(1)
	return ingest.Summary{}, nil
}

func TestRunSyncsOnStartAndStopsOnCancel(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(syncer, zap.NewNop().Sugar(), "@every 1h", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 },
		time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.EqualValues(t, 1, syncer.calls.Load())
}

func TestRunWithoutSyncOnStart(t *testing.T) {
	syncer := &fakeSyncer{}
	s := New(syncer, zap.NewNop().Sugar(), "@every 1h", false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Zero(t, syncer.calls.Load())
}

func TestRunRejectsBadCronSpec(t *testing.T) {
	s := New(&fakeSyncer{}, zap.NewNop().Sugar(), "not a cron spec", false)
	assert.Error(t, s.Run(context.Background()))
}
