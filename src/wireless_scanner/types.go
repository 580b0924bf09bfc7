package wireless_scanner

import (
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// Source identifies which mechanism produced a snapshot.
type Source string

const (
	SourceNmcli     Source = "nmcli"
	SourceIw        Source = "iw"
	SourceNetsh     Source = "netsh"
	SourceAirport   Source = "airport"
	SourceSynthetic Source = "synthetic"
	// SourceDegraded marks a single real network padded with synthetic ones.
	SourceDegraded Source = "degraded"
)

// BackendAuto selects backends from the host operating system.
const BackendAuto = "auto"

// Snapshot is the normalized, deduplicated result of one scan.
type Snapshot struct {
	Networks  []signal_quality.Observation `json:"networks"`
	Source    Source                       `json:"source"`
	ScannedAt time.Time                    `json:"scanned_at"`
}

// Count returns the number of networks in the snapshot.
func (s Snapshot) Count() int {
	return len(s.Networks)
}

// Find returns the observation for ssid, if present.
func (s Snapshot) Find(ssid string) (signal_quality.Observation, bool) {
	for _, obs := range s.Networks {
		if obs.SSID == ssid {
			return obs, true
		}
	}
	return signal_quality.Observation{}, false
}

// Options configures a WiFiScanner.
type Options struct {
	// Backend is "auto" or one of the Source names. "synthetic" disables real scanning.
	Backend string
	// Interface pins the iw backend to one interface.
	Interface string
	// UCIConfigRoot is where OpenWrt keeps its UCI files, usually /etc/config.
	UCIConfigRoot string
	// PadSparseResults merges synthetic networks into results with at most one real network.
	PadSparseResults bool
	// SyntheticSeed seeds the synthetic generator; zero picks a time-based seed.
	SyntheticSeed uint64
	// Catalog overrides the synthetic network catalog.
	Catalog []CatalogEntry
	// Runner overrides command execution.
	Runner CommandRunner
	// GOOS overrides the detected operating system for backend selection.
	GOOS string
}
