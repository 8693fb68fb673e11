package health

import (
	"context"
	"go-bank-sync/client/syncer"
	"go-bank-sync/logger"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeProber flips reachability on demand and counts probes.
type fakeProber struct {
	healthy atomic.Bool
	probes  atomic.Int64
}

func (p *fakeProber) Health(ctx context.Context) bool {
	p.probes.Add(1)
	return p.healthy.Load()
}

func TestMonitor_TransitionToHealthyTriggersDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &fakeProber{}
	prober.healthy.Store(false)

	var drains atomic.Int64
	monitor := NewMonitor(prober, 10*time.Millisecond, syncer.NewNotifier(), func(ctx context.Context) {
		drains.Add(1)
	})
	monitor.Start(ctx)

	assert.Eventually(t, func() bool { return prober.probes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, monitor.Online())
	assert.Zero(t, drains.Load())

	prober.healthy.Store(true)

	assert.Eventually(t, monitor.Online, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return drains.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Staying healthy must not re-fire the drain callback.
	probesAtTransition := prober.probes.Load()
	assert.Eventually(t, func() bool {
		return prober.probes.Load() >= probesAtTransition+3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), drains.Load())
}

func TestMonitor_SetConnectivity(t *testing.T) {
	ctx := context.Background()

	prober := &fakeProber{}
	prober.healthy.Store(true)

	notifier := syncer.NewNotifier()
	events := notifier.Subscribe(8)

	var drains atomic.Int64
	monitor := NewMonitor(prober, time.Hour, notifier, func(ctx context.Context) {
		drains.Add(1)
	})

	// Going online probes immediately instead of waiting for a tick.
	monitor.SetConnectivity(ctx, false)
	assert.False(t, monitor.Online())

	monitor.SetConnectivity(ctx, true)
	assert.True(t, monitor.Online())
	assert.Equal(t, int64(1), drains.Load())
	assert.Equal(t, int64(1), prober.probes.Load())

	// Dropping the network marks the server unreachable without a probe.
	monitor.SetConnectivity(ctx, false)
	assert.False(t, monitor.Online())
	assert.Equal(t, int64(1), prober.probes.Load())

	offline := <-events
	assert.Equal(t, syncer.EventConnectivityChanged, offline.Type)
	assert.False(t, offline.Online)

	online := <-events
	assert.Equal(t, syncer.EventConnectivityChanged, online.Type)
	assert.True(t, online.Online)

	offlineAgain := <-events
	assert.False(t, offlineAgain.Online)

	// Redundant flags are ignored.
	monitor.SetConnectivity(ctx, false)
	assert.Empty(t, events)
}

func TestMonitor_ProbeSkippedWithoutNetwork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &fakeProber{}
	prober.healthy.Store(true)

	monitor := NewMonitor(prober, 10*time.Millisecond, syncer.NewNotifier(), nil)
	monitor.SetConnectivity(ctx, false)
	monitor.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, prober.probes.Load(), "no probes while the device is offline")
	assert.False(t, monitor.Online())
}
