package health

import (
	"context"
	"sync/atomic"
	"time"

	"go-bank-sync/client/syncer"
	"go-bank-sync/logger"
)

// Prober answers whether the ledger server is reachable right now.
type Prober interface {
	Health(ctx context.Context) bool
}

// Monitor tracks effective connectivity: the device-level network flag
// combined with a periodic probe of the server health endpoint. When the
// server transitions back to healthy it fires onHealthy, which is expected to
// kick off an outbox drain.
type Monitor struct {
	prober    Prober
	interval  time.Duration
	notifier  *syncer.Notifier
	onHealthy func(ctx context.Context)

	connected atomic.Bool
	healthy   atomic.Bool
}

func NewMonitor(prober Prober, interval time.Duration, notifier *syncer.Notifier, onHealthy func(ctx context.Context)) *Monitor {
	m := &Monitor{
		prober:    prober,
		interval:  interval,
		notifier:  notifier,
		onHealthy: onHealthy,
	}
	m.connected.Store(true)
	return m
}

// Online reports whether the device considers itself able to reach the
// server: network present and the last probe succeeded.
func (m *Monitor) Online() bool {
	return m.connected.Load() && m.healthy.Load()
}

// SetConnectivity feeds the device-level network flag. Going offline marks
// the server unhealthy immediately; coming back online probes right away
// rather than waiting for the next tick.
func (m *Monitor) SetConnectivity(ctx context.Context, online bool) {
	if m.connected.Swap(online) == online {
		return
	}
	m.notifier.Publish(syncer.Event{Type: syncer.EventConnectivityChanged, Online: online})
	if !online {
		m.healthy.Store(false)
		return
	}
	m.probe(ctx)
}

// Start runs the probe loop until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		m.probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

func (m *Monitor) probe(ctx context.Context) {
	if !m.connected.Load() {
		return
	}
	healthy := m.prober.Health(ctx)
	wasHealthy := m.healthy.Swap(healthy)
	if healthy == wasHealthy {
		return
	}
	if healthy {
		logger.Log.Info("Server reachable again, triggering outbox drain")
		if m.onHealthy != nil {
			m.onHealthy(ctx)
		}
		return
	}
	logger.Log.Warn("Server health probe failed, holding outbox")
}
