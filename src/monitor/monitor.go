// Package monitor runs the background scan loop and owns the subscription state.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

const (
	DefaultInterval     = 2 * time.Second
	DefaultErrorBackoff = 5 * time.Second

	noNetworksMessage = "No networks detected"
)

// Config tunes the loop cadence.
type Config struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
}

// Monitor is a start/stop controlled worker that scans and publishes.
// At most one worker runs at a time.
type Monitor struct {
	scanner   wireless_scanner.Scanner
	publisher Publisher
	recorder  CycleRecorder
	state     *SubscriptionState
	interval  time.Duration
	backoff   time.Duration
	now       func() time.Time

	mu     sync.Mutex // guards cancel
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped monitor.
func New(scanner wireless_scanner.Scanner, publisher Publisher, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	return &Monitor{
		scanner:   scanner,
		publisher: publisher,
		state:     NewSubscriptionState(),
		interval:  cfg.Interval,
		backoff:   cfg.ErrorBackoff,
		now:       time.Now,
	}
}

// SetRecorder attaches cycle telemetry. Call before Start.
func (m *Monitor) SetRecorder(r CycleRecorder) {
	m.recorder = r
}

// Start transitions Stopped to Running and spawns the worker. A non-empty
// focus replaces the selection; otherwise the existing selection is kept.
// While running it returns ErrAlreadyRunning and changes nothing.
func (m *Monitor) Start(focus ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.tryStart(focus) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx)

	logger.WithField("selected_networks", m.state.Selected()).Info("Monitoring started")
	if m.recorder != nil {
		m.recorder.SetMonitorRunning(true)
	}
	return nil
}

// Stop transitions to Stopped and clears the selection. The worker exits
// without publishing again; Stop does not wait for it.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasRunning := m.state.stop()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if wasRunning {
		logger.Info("Monitoring stopped")
	}
	if m.recorder != nil {
		m.recorder.SetMonitorRunning(false)
	}
	return wasRunning
}

// Shutdown stops the loop and waits for the worker to exit.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("monitor worker did not exit: %w", ctx.Err())
	}
}

// Select changes the focus selection regardless of run state.
func (m *Monitor) Select(ssid, action string) ([]string, error) {
	selected, err := m.state.Apply(ssid, action)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"ssid":              ssid,
		"action":            action,
		"selected_networks": selected,
	}).Debug("Selection updated")
	return selected, nil
}

// Status reports the run flag and selection.
func (m *Monitor) Status() Status {
	return m.state.Snapshot()
}

// ScanOnce runs one scan and publishes it as a networks update, even when empty.
// It does not touch the run state.
func (m *Monitor) ScanOnce(ctx context.Context) (wireless_scanner.Snapshot, error) {
	snap := m.scanner.Scan(ctx)
	if err := m.publisher.Publish(events.NewNetworksUpdate(snap.Networks, m.now())); err != nil {
		return snap, fmt.Errorf("failed to publish scan: %w", err)
	}
	return snap, nil
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil || !m.state.IsRunning() {
			return
		}

		start := time.Now()
		err := m.cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		if m.recorder != nil {
			m.recorder.ObserveCycle(time.Since(start), err)
		}

		wait := m.interval - time.Since(start)
		if err != nil {
			logger.WithError(err).Warn("Monitor cycle failed, backing off")
			if pubErr := m.publisher.Publish(events.Error{Message: "Monitoring error: " + err.Error()}); pubErr != nil {
				logger.WithError(pubErr).Warn("Failed to publish monitor error")
			}
			wait = m.backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle scans once and publishes the snapshot plus detail events for the
// selected networks. Panics become errors so the loop survives them.
func (m *Monitor) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during monitor cycle: %v", r)
		}
	}()

	snap := m.scanner.Scan(ctx)
	if ctx.Err() != nil {
		return nil
	}

	if len(snap.Networks) == 0 {
		return m.publisher.Publish(events.Error{Message: noNetworksMessage})
	}

	if err := m.publisher.Publish(events.NewNetworksUpdate(snap.Networks, m.now())); err != nil {
		return fmt.Errorf("failed to publish networks update: %w", err)
	}

	for _, ssid := range m.state.Selected() {
		obs, ok := snap.Find(ssid)
		if !ok {
			continue
		}
		if err := m.publisher.Publish(events.NewSignalUpdate(obs, m.now())); err != nil {
			return fmt.Errorf("failed to publish signal update for %q: %w", ssid, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"source":        snap.Source,
		"network_count": len(snap.Networks),
	}).Debug("Monitor cycle complete")
	return nil
}
