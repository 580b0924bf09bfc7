package wireless_scanner

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// jitterDBM bounds the per-scan random variation applied to each baseline.
const jitterDBM = 3

// CatalogEntry describes one synthetic network.
type CatalogEntry struct {
	SSID        string
	BaselineDBM int
	Security    string
}

// DefaultCatalog is used when no catalog is configured.
var DefaultCatalog = []CatalogEntry{
	{SSID: "Neighbor_WiFi_5G", BaselineDBM: -55, Security: "WPA2-Personal"},
	{SSID: "TP-Link_Home", BaselineDBM: -62, Security: "WPA2-Personal"},
	{SSID: "Office_Network", BaselineDBM: -68, Security: "WPA2-Enterprise"},
	{SSID: "Guest_Hotspot", BaselineDBM: -72, Security: "Open"},
	{SSID: "Netgear_2.4G", BaselineDBM: -75, Security: "WPA2-Personal"},
	{SSID: "Linksys_5GHz", BaselineDBM: -78, Security: "WPA2-Personal"},
	{SSID: "CoffeeShop_Free", BaselineDBM: -81, Security: "Open"},
	{SSID: "Apartment_203", BaselineDBM: -84, Security: "WPA2-Personal"},
}

var (
	channels24 = []int{1, 6, 11}
	channels5  = []int{36, 40, 44, 48, 149, 153, 157, 161}
)

// SyntheticGenerator produces plausible networks when no real scan data is available.
// Even catalog positions get a 2.4 GHz channel, odd positions a 5 GHz one.
type SyntheticGenerator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	catalog []CatalogEntry
}

// NewSyntheticGenerator creates a generator. A nil catalog selects DefaultCatalog
// and a zero seed selects a time-based one.
func NewSyntheticGenerator(catalog []CatalogEntry, seed uint64) *SyntheticGenerator {
	if catalog == nil {
		catalog = DefaultCatalog
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SyntheticGenerator{
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		catalog: append([]CatalogEntry(nil), catalog...),
	}
}

// Generate returns one fresh set of synthetic observations.
func (g *SyntheticGenerator) Generate() []signal_quality.Observation {
	g.mu.Lock()
	defer g.mu.Unlock()

	networks := make([]signal_quality.Observation, 0, len(g.catalog))
	for i, entry := range g.catalog {
		dbm := entry.BaselineDBM + g.rng.IntN(2*jitterDBM+1) - jitterDBM
		pool := channels24
		if i%2 == 1 {
			pool = channels5
		}
		channel := signal_quality.ChannelNumber(pool[g.rng.IntN(len(pool))])
		networks = append(networks, signal_quality.NewObservation(entry.SSID, "", dbm, channel, entry.Security))
	}
	return networks
}

// mergeDegraded pads a sparse real result with synthetic networks. Synthetic
// entries whose SSID collides with a real one are skipped.
func mergeDegraded(observed, synthetic []signal_quality.Observation) []signal_quality.Observation {
	seen := make(map[string]struct{}, len(observed))
	merged := make([]signal_quality.Observation, 0, len(observed)+len(synthetic))
	for _, obs := range observed {
		seen[obs.SSID] = struct{}{}
		merged = append(merged, obs)
	}
	for _, obs := range synthetic {
		if _, ok := seen[obs.SSID]; ok {
			continue
		}
		merged = append(merged, obs)
	}
	return merged
}
