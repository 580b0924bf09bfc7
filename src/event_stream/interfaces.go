package event_stream

import (
	"context"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

// Controller is the monitor surface driven by client requests.
type Controller interface {
	Start(focus ...string) error
	Stop() bool
	Select(ssid, action string) ([]string, error)
	ScanOnce(ctx context.Context) (wireless_scanner.Snapshot, error)
	Status() monitor.Status
}

// StreamRecorder receives stream telemetry.
type StreamRecorder interface {
	SetStreamClients(n int)
	ObserveStreamEvent(event string)
}
