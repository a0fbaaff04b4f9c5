// Package server implements the liveness sweep that reclaims unresponsive
// connections on a fixed cadence, independent of message traffic.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// HealthMonitor periodically probes every registered connection. Each tick it
// terminates connections whose liveness flag is still cleared from the
// previous tick, then clears the flag on the survivors and sends them a ping.
// A pong sets the flag again, so a connection must answer at least one probe
// per two tick intervals or be dropped. That bounds the worst-case time to
// reclaim a dead connection to two tick periods.
type HealthMonitor struct {
	hub      *Hub
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewHealthMonitor creates a monitor sweeping the hub's registry every
// interval. A non-positive interval falls back to the configured default.
func NewHealthMonitor(hub *Hub, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = currentConfig().PingInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HealthMonitor{
		hub:      hub,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the sweep loop in its own goroutine.
func (m *HealthMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		log.Printf("Health monitor started with interval %v", m.interval)

		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.ctx.Done():
				log.Println("Health monitor stopped")
				return
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to finish.
func (m *HealthMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// sweep runs one monitor tick over a registry snapshot.
func (m *HealthMonitor) sweep() {
	for _, client := range m.hub.clientSnapshot() {
		if !client.alive.Load() {
			// No probe response since the previous tick.
			if m.hub.removeClient(client) {
				m.hub.metrics.ReapedTotal.Inc()
				log.Printf("Client %s for user %s reclaimed: unresponsive to liveness probe",
					client.handle, client.identity)
			}
			continue
		}

		client.alive.Store(false)
		client.requestPing()
	}
}
