// Package connectivity turns periodic reachability probes into a live
// boolean stream on the event bus. The chat screen consumes the stream
// to drive presence status writes.
package connectivity

import (
	"context"
	"net"
	"time"

	"github.com/psantos/loro/internal/bus"
	"go.uber.org/zap"
)

// EventKind is published on every connectivity transition, with a bool
// payload. The first observation is always published.
const EventKind = "connectivity.changed"

// Watcher probes a TCP address on a ticker and publishes transitions.
type Watcher struct {
	addr     string
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger
	probe    func(addr string) bool
	cancel   context.CancelFunc
}

// NewWatcher creates a watcher probing addr every interval.
func NewWatcher(addr string, interval time.Duration, b *bus.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{
		addr:     addr,
		interval: interval,
		bus:      b,
		logger:   logger,
		probe:    dialProbe,
	}
}

// Start begins probing in the background.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

// Stop stops the watcher loop.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.probe(w.addr)
	w.publish(last)

	for {
		select {
		case <-ticker.C:
			online := w.probe(w.addr)
			if online != last {
				w.publish(online)
				last = online
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) publish(online bool) {
	w.logger.Info("connectivity changed", zap.Bool("online", online))
	w.bus.Publish(bus.Event{
		Kind:      EventKind,
		Timestamp: time.Now(),
		Payload:   online,
	})
}

func dialProbe(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
