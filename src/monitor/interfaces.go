package monitor

import (
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
)

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(e events.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e events.Event) error

func (f PublisherFunc) Publish(e events.Event) error { return f(e) }

// CycleRecorder receives monitor telemetry.
type CycleRecorder interface {
	ObserveCycle(elapsed time.Duration, err error)
	SetMonitorRunning(running bool)
}

// Status is a point-in-time view of the subscription state.
type Status struct {
	Running          bool     `json:"running"`
	SelectedNetworks []string `json:"selected_networks"`
}
