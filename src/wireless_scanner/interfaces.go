package wireless_scanner

import (
	"context"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// Scanner produces a snapshot of visible networks. Implementations never
// return an error; failures degrade to synthetic data.
type Scanner interface {
	Scan(ctx context.Context) Snapshot
}

// Backend is one platform listing mechanism.
type Backend interface {
	Source() Source
	Scan(ctx context.Context) ([]signal_quality.Observation, error)
}

// ScanRecorder receives scan telemetry.
type ScanRecorder interface {
	ObserveScan(source string, networks int, elapsed time.Duration)
	ObserveBackendFailure(backend string)
}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
