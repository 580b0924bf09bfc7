package wireless_scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

type mockBackend struct {
	mock.Mock
	source Source
}

func (m *mockBackend) Source() Source { return m.source }

func (m *mockBackend) Scan(ctx context.Context) ([]signal_quality.Observation, error) {
	args := m.Called(ctx)
	networks, _ := args.Get(0).([]signal_quality.Observation)
	return networks, args.Error(1)
}

type panickingBackend struct{}

func (panickingBackend) Source() Source { return SourceIw }

func (panickingBackend) Scan(context.Context) ([]signal_quality.Observation, error) {
	panic("index out of range")
}

type recordingRecorder struct {
	sources  []string
	failures []string
}

func (r *recordingRecorder) ObserveScan(source string, networks int, elapsed time.Duration) {
	r.sources = append(r.sources, source)
}

func (r *recordingRecorder) ObserveBackendFailure(backend string) {
	r.failures = append(r.failures, backend)
}

func obs(ssid string, dbm int) signal_quality.Observation {
	return signal_quality.NewObservation(ssid, "", dbm, signal_quality.ChannelNumber(6), "WPA2")
}

func TestSyntheticGeneratorInvariants(t *testing.T) {
	gen := NewSyntheticGenerator(nil, 42)

	for round := 0; round < 50; round++ {
		networks := gen.Generate()
		require.Len(t, networks, len(DefaultCatalog))
		for i, n := range networks {
			entry := DefaultCatalog[i]
			assert.Equal(t, entry.SSID, n.SSID)
			assert.Equal(t, entry.Security, n.Security)
			assert.InDelta(t, entry.BaselineDBM, n.SignalStrength, jitterDBM)
			assert.Equal(t, signal_quality.ToQuality(float64(n.SignalStrength)), n.SignalQuality)
			if i%2 == 0 {
				assert.Contains(t, channels24, n.Channel.Number)
			} else {
				assert.Contains(t, channels5, n.Channel.Number)
			}
		}
	}
}

func TestSyntheticGeneratorSeedIsDeterministic(t *testing.T) {
	a := NewSyntheticGenerator(nil, 7).Generate()
	b := NewSyntheticGenerator(nil, 7).Generate()
	assert.Equal(t, a, b)
}

func TestDegradedMergeKeepsRealEntry(t *testing.T) {
	catalog := []CatalogEntry{
		{SSID: "Home", BaselineDBM: -40, Security: "Open"},
		{SSID: "Neighbor", BaselineDBM: -70, Security: "WPA2-Personal"},
	}
	home := obs("Home", -61)

	backend := &mockBackend{source: SourceNetsh}
	backend.On("Scan", mock.Anything).Return([]signal_quality.Observation{home}, nil)

	scanner := NewWithBackends([]Backend{backend}, NewSyntheticGenerator(catalog, 1), true)
	snap := scanner.Scan(context.Background())

	assert.Equal(t, SourceDegraded, snap.Source)
	require.Len(t, snap.Networks, 2)
	homes := 0
	for _, n := range snap.Networks {
		if n.SSID == "Home" {
			homes++
			assert.Equal(t, home, n)
		}
	}
	assert.Equal(t, 1, homes)
	backend.AssertExpectations(t)
}

func TestSparseResultWithoutPadding(t *testing.T) {
	backend := &mockBackend{source: SourceNmcli}
	backend.On("Scan", mock.Anything).Return([]signal_quality.Observation{obs("Home", -50)}, nil)

	snap := NewWithBackends([]Backend{backend}, NewSyntheticGenerator(nil, 1), false).Scan(context.Background())

	assert.Equal(t, SourceNmcli, snap.Source)
	assert.Len(t, snap.Networks, 1)
}

func TestScanFallsThroughBackends(t *testing.T) {
	failing := &mockBackend{source: SourceNmcli}
	failing.On("Scan", mock.Anything).Return(nil, errors.New("nmcli: executable file not found"))
	working := &mockBackend{source: SourceIw}
	working.On("Scan", mock.Anything).Return([]signal_quality.Observation{obs("A", -50), obs("B", -60), obs("A", -55)}, nil)

	recorder := &recordingRecorder{}
	scanner := NewWithBackends([]Backend{failing, working}, nil, true)
	scanner.SetRecorder(recorder)

	snap := scanner.Scan(context.Background())

	assert.Equal(t, SourceIw, snap.Source)
	require.Len(t, snap.Networks, 2)
	assert.Equal(t, -55, snap.Networks[0].SignalStrength)
	assert.False(t, snap.ScannedAt.IsZero())
	assert.Equal(t, []string{"iw"}, recorder.sources)
	assert.Equal(t, []string{"nmcli"}, recorder.failures)
}

func TestScanFallsBackToSyntheticOnFailure(t *testing.T) {
	empty := &mockBackend{source: SourceNetsh}
	empty.On("Scan", mock.Anything).Return([]signal_quality.Observation{}, nil)

	scanner := NewWithBackends([]Backend{panickingBackend{}, empty}, NewSyntheticGenerator(nil, 3), true)
	snap := scanner.Scan(context.Background())

	assert.Equal(t, SourceSynthetic, snap.Source)
	assert.Len(t, snap.Networks, len(DefaultCatalog))
}

func TestFindInSnapshot(t *testing.T) {
	snap := Snapshot{Networks: []signal_quality.Observation{obs("A", -50)}}
	found, ok := snap.Find("A")
	assert.True(t, ok)
	assert.Equal(t, "A", found.SSID)
	_, ok = snap.Find("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, snap.Count())
}

func TestBackendsForPlatform(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		backend string
		want    []Source
		wantErr bool
	}{
		{name: "linux auto", goos: "linux", backend: BackendAuto, want: []Source{SourceNmcli, SourceIw}},
		{name: "darwin default", goos: "darwin", want: []Source{SourceAirport}},
		{name: "windows auto", goos: "windows", backend: BackendAuto, want: []Source{SourceNetsh}},
		{name: "unsupported os", goos: "plan9", backend: BackendAuto, want: nil},
		{name: "forced iw", goos: "darwin", backend: "iw", want: []Source{SourceIw}},
		{name: "synthetic only", goos: "linux", backend: "synthetic", want: nil},
		{name: "unknown backend", goos: "linux", backend: "wpa_cli", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends, err := backendsFor(tt.goos, Options{Backend: tt.backend}, runCommand)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var got []Source
			for _, b := range backends {
				got = append(got, b.Source())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIwBackendScansEveryInterface(t *testing.T) {
	var scanned []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		scanned = append(scanned, args[1])
		if args[1] == "wlan1" {
			return nil, errors.New("device busy")
		}
		return []byte(iwScanFixture), nil
	}
	backend := &iwBackend{
		run:      runner,
		discover: func() ([]string, error) { return []string{"wlan0", "wlan1"}, nil },
	}

	networks, err := backend.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"wlan0", "wlan1"}, scanned)
	assert.Len(t, networks, 4)
}

func TestIwBackendWithoutInterfaces(t *testing.T) {
	backend := &iwBackend{
		run:      runCommand,
		discover: func() ([]string, error) { return nil, nil },
	}
	_, err := backend.Scan(context.Background())
	assert.ErrorIs(t, err, ErrNoInterfaces)
}

func TestIwBackendPrefersConfiguredInterface(t *testing.T) {
	backend := &iwBackend{
		iface:    "phy0-sta0",
		discover: func() ([]string, error) { return []string{"wlan0"}, nil },
	}
	names, err := backend.interfaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"phy0-sta0"}, names)
}

const uciWirelessFixture = `
config wifi-device 'radio0'
	option type 'mac80211'
	option channel '1'

config wifi-iface 'default_radio0'
	option device 'radio0'
	option network 'lan'
	option mode 'ap'
	option ifname 'phy0-ap0'

config wifi-iface 'wwan'
	option device 'radio0'
	option network 'wwan'
	option mode 'sta'
	option ifname 'phy0-sta0'

config wifi-iface 'wwan_backup'
	option device 'radio1'
	option mode 'sta'
	option ifname 'phy1-sta0'
	option disabled '1'
`

func TestStaInterfacesFromUCI(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "wireless"), []byte(uciWirelessFixture), 0o644))

	names, err := staInterfacesFromUCI(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"phy0-sta0"}, names)
}

func TestStaInterfacesFromUCIMissingFile(t *testing.T) {
	names, err := staInterfacesFromUCI(t.TempDir())
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestIsWireless(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "wlan0", "wireless"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "eth0"), 0o755))

	assert.True(t, isWireless(root, "wlan0"))
	assert.False(t, isWireless(root, "eth0"))
}
