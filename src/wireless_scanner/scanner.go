// Package wireless_scanner lists nearby Wi-Fi networks through the host's
// platform tools and normalizes them into snapshots, falling back to
// synthetic data when no real data is available.
package wireless_scanner

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// WiFiScanner tries its backends in order and never fails outward.
type WiFiScanner struct {
	backends  []Backend
	synthetic *SyntheticGenerator
	padSparse bool
	recorder  ScanRecorder
	now       func() time.Time
}

// New builds a scanner with the backends appropriate for opts.
func New(opts Options) (*WiFiScanner, error) {
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	runner := opts.Runner
	if runner == nil {
		runner = runCommand
	}

	backends, err := backendsFor(goos, opts, runner)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, string(b.Source()))
	}
	logger.WithFields(logrus.Fields{
		"os":       goos,
		"backends": names,
	}).Info("Wi-Fi scanner initialized")

	return NewWithBackends(backends, NewSyntheticGenerator(opts.Catalog, opts.SyntheticSeed), opts.PadSparseResults), nil
}

// NewWithBackends builds a scanner from explicit backends.
func NewWithBackends(backends []Backend, synthetic *SyntheticGenerator, padSparse bool) *WiFiScanner {
	if synthetic == nil {
		synthetic = NewSyntheticGenerator(nil, 0)
	}
	return &WiFiScanner{
		backends:  backends,
		synthetic: synthetic,
		padSparse: padSparse,
		now:       time.Now,
	}
}

// SetRecorder attaches scan telemetry.
func (s *WiFiScanner) SetRecorder(r ScanRecorder) {
	s.recorder = r
}

// Scan returns a snapshot from the first backend that yields networks, or synthetic data.
func (s *WiFiScanner) Scan(ctx context.Context) Snapshot {
	start := time.Now()
	snap := s.scan(ctx)
	snap.ScannedAt = s.now().UTC()

	logger.WithFields(logrus.Fields{
		"source":        snap.Source,
		"network_count": len(snap.Networks),
	}).Debug("Scan complete")
	if s.recorder != nil {
		s.recorder.ObserveScan(string(snap.Source), len(snap.Networks), time.Since(start))
	}
	return snap
}

func (s *WiFiScanner) scan(ctx context.Context) Snapshot {
	for _, backend := range s.backends {
		if ctx.Err() != nil {
			break
		}
		networks, err := runBackend(ctx, backend)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"backend": backend.Source(),
				"error":   err,
			}).Warn("Scan backend failed, trying next")
			if s.recorder != nil {
				s.recorder.ObserveBackendFailure(string(backend.Source()))
			}
			continue
		}

		networks = collapseBySSID(networks)
		if len(networks) == 0 {
			logger.WithField("backend", backend.Source()).Debug("Scan backend reported no networks")
			continue
		}
		if len(networks) <= 1 && s.padSparse {
			logger.WithField("backend", backend.Source()).Warn("Platform reported a single network, adding simulated nearby networks")
			return Snapshot{
				Networks: mergeDegraded(networks, s.synthetic.Generate()),
				Source:   SourceDegraded,
			}
		}
		return Snapshot{Networks: networks, Source: backend.Source()}
	}

	if len(s.backends) > 0 {
		logger.Warn("No platform scan data available, using synthetic networks")
	}
	return Snapshot{Networks: s.synthetic.Generate(), Source: SourceSynthetic}
}

// runBackend converts a parser panic into an ordinary backend failure.
func runBackend(ctx context.Context, backend Backend) (networks []signal_quality.Observation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked: %v", backend.Source(), r)
		}
	}()
	return backend.Scan(ctx)
}

// backendsFor picks the ordered backend list for an OS and configured backend name.
func backendsFor(goos string, opts Options, runner CommandRunner) ([]Backend, error) {
	iw := &iwBackend{
		run:       runner,
		iface:     opts.Interface,
		uciRoot:   opts.UCIConfigRoot,
		discover:  discoverWirelessInterfaces,
		uciLookup: staInterfacesFromUCI,
	}

	switch opts.Backend {
	case "", BackendAuto:
		switch goos {
		case "linux":
			return []Backend{&nmcliBackend{run: runner}, iw}, nil
		case "darwin":
			return []Backend{&airportBackend{run: runner}}, nil
		case "windows":
			return []Backend{&netshBackend{run: runner}}, nil
		default:
			return nil, nil
		}
	case string(SourceNmcli):
		return []Backend{&nmcliBackend{run: runner}}, nil
	case string(SourceIw):
		return []Backend{iw}, nil
	case string(SourceNetsh):
		return []Backend{&netshBackend{run: runner}}, nil
	case string(SourceAirport):
		return []Backend{&airportBackend{run: runner}}, nil
	case string(SourceSynthetic):
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown scanner backend %q", opts.Backend)
	}
}
