// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/listflow/internal/eventlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startRunner(t *testing.T, r *Runner) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	return cancel, errCh
}

func wait(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
		return nil
	}
}

func TestRunner_PreservesPerKeyOrder(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory(4)
	const keys, perKey = 8, 25
	for i := 0; i < perKey; i++ {
		for k := 0; k < keys; k++ {
			require.NoError(t, log.Produce(ctx, "in", eventlog.Message{
				Key:   []byte(fmt.Sprint("session-", k)),
				Value: []byte(strconv.Itoa(i)),
			}))
		}
	}

	consumer, err := log.NewConsumer("g", "in")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		seen  = map[string][]int{}
		total atomic.Int32
		all   = make(chan struct{})
	)
	r := NewRunner(Config{Stage: "order", Group: "g", Lanes: 3}, consumer, func(_ context.Context, rec eventlog.Record) error {
		n, _ := strconv.Atoi(string(rec.Value))
		mu.Lock()
		seen[string(rec.Key)] = append(seen[string(rec.Key)], n)
		mu.Unlock()
		if total.Add(1) == keys*perKey {
			close(all)
		}
		return nil
	})

	cancel, errCh := startRunner(t, r)
	select {
	case <-all:
	case <-time.After(5 * time.Second):
		t.Fatal("records not processed")
	}
	cancel()
	require.NoError(t, wait(t, errCh))

	require.Len(t, seen, keys)
	for key, values := range seen {
		require.Len(t, values, perKey, key)
		for i, v := range values {
			assert.Equal(t, i, v, "out of order for %s", key)
		}
	}
	for p := 0; p < 4; p++ {
		var inPartition int64
		for _, rec := range log.Records("in") {
			if rec.Partition == p {
				inPartition++
			}
		}
		assert.Equal(t, inPartition, log.Committed("g", "in", p), "partition %d fully committed", p)
	}
}

func TestRunner_HandlerErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory(1)
	for _, v := range []string{"ok", "boom", "after"} {
		require.NoError(t, log.Produce(ctx, "in", eventlog.Message{Key: []byte("k"), Value: []byte(v)}))
	}
	consumer, err := log.NewConsumer("g", "in")
	require.NoError(t, err)

	boom := errors.New("boom")
	var handled []string
	r := NewRunner(Config{Stage: "fatal", Lanes: 2}, consumer, func(_ context.Context, rec eventlog.Record) error {
		handled = append(handled, string(rec.Value))
		if string(rec.Value) == "boom" {
			return boom
		}
		return nil
	})

	_, errCh := startRunner(t, r)
	err = wait(t, errCh)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage fatal")

	assert.Equal(t, []string{"ok", "boom"}, handled, "nothing after the failure is processed")
	assert.Equal(t, int64(1), log.Committed("g", "in", 0), "the failed record stays uncommitted")
}

func TestRunner_ShutdownFinishesInFlightRecord(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory(1)
	require.NoError(t, log.Produce(ctx, "in", eventlog.Message{Key: []byte("k"), Value: []byte("slow")}))
	consumer, err := log.NewConsumer("g", "in")
	require.NoError(t, err)

	started := make(chan struct{})
	var finished atomic.Bool
	r := NewRunner(Config{Stage: "drain", DrainTimeout: 2 * time.Second}, consumer, func(hctx context.Context, _ eventlog.Record) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		if hctx.Err() == nil {
			finished.Store(true)
		}
		return nil
	})

	cancel, errCh := startRunner(t, r)
	<-started
	cancel()
	require.NoError(t, wait(t, errCh))

	assert.True(t, finished.Load(), "handler context survives shutdown")
	assert.Equal(t, int64(1), log.Committed("g", "in", 0), "in-flight record is committed")
}

func TestRunner_DrainTimeoutAbandonsWork(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory(1)
	require.NoError(t, log.Produce(ctx, "in", eventlog.Message{Key: []byte("k"), Value: []byte("stuck")}))
	consumer, err := log.NewConsumer("g", "in")
	require.NoError(t, err)

	started := make(chan struct{})
	r := NewRunner(Config{Stage: "stuck", DrainTimeout: 50 * time.Millisecond}, consumer, func(hctx context.Context, _ eventlog.Record) error {
		close(started)
		<-hctx.Done()
		return nil
	})

	cancel, errCh := startRunner(t, r)
	<-started
	cancel()
	require.NoError(t, wait(t, errCh))
	assert.Equal(t, int64(0), log.Committed("g", "in", 0))
}

func TestRunner_ClosedLogStopsCleanly(t *testing.T) {
	log := eventlog.NewMemory(1)
	consumer, err := log.NewConsumer("g", "in")
	require.NoError(t, err)

	r := NewRunner(Config{Stage: "closed"}, consumer, func(context.Context, eventlog.Record) error { return nil })
	_, errCh := startRunner(t, r)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, log.Close())
	require.NoError(t, wait(t, errCh))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 1, cfg.Lanes)
	assert.Equal(t, 10*time.Second, cfg.DrainTimeout)
	assert.Equal(t, 64, cfg.LaneBuffer)
}
