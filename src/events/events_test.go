package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

func TestEncodeNetworksUpdate(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	obs := signal_quality.NewObservation("Home", "", -60, signal_quality.ChannelNumber(6), "WPA2")

	raw, err := Encode(NewNetworksUpdate([]signal_quality.Observation{obs}, at))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"event": "networks_update",
		"data": {
			"networks": [{"ssid":"Home","signal_strength":-60,"signal_quality":50,"channel":6,"frequency":"2.4 GHz (Ch 6)","security":"WPA2"}],
			"timestamp": "2024-05-01T12:00:00Z",
			"count": 1
		}
	}`, string(raw))
}

func TestNewNetworksUpdateEmpty(t *testing.T) {
	raw, err := Encode(NewNetworksUpdate(nil, time.Unix(0, 0)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"networks":[]`)
	assert.Contains(t, string(raw), `"count":0`)
}

func TestDecodeRoundTripsServerEvents(t *testing.T) {
	obs := signal_quality.NewObservation("Cafe", "", -75, signal_quality.Channel{}, "Open")
	original := NewSignalUpdate(obs, time.Unix(100, 0))

	raw, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = Decode([]byte(`{"event":"mystery"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDecodeClientEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ClientEvent
		wantErr bool
	}{
		{
			name: "start with single ssid",
			raw:  `{"event":"start_monitoring","data":{"ssid":"Home"}}`,
			want: StartMonitoring{SSID: "Home"},
		},
		{
			name: "start without data",
			raw:  `{"event":"start_monitoring"}`,
			want: StartMonitoring{},
		},
		{
			name: "stop",
			raw:  `{"event":"stop_monitoring","data":{}}`,
			want: StopMonitoring{},
		},
		{
			name: "select normalizes action",
			raw:  `{"event":"select_network","data":{"ssid":"Home","action":" Toggle "}}`,
			want: SelectNetwork{SSID: "Home", Action: "toggle"},
		},
		{
			name:    "select add without ssid",
			raw:     `{"event":"select_network","data":{"action":"add"}}`,
			wantErr: true,
		},
		{
			name: "select set without ssid clears",
			raw:  `{"event":"select_network","data":{"action":"set"}}`,
			want: SelectNetwork{Action: "set"},
		},
		{
			name: "scan once",
			raw:  `{"event":"scan_once"}`,
			want: ScanOnce{},
		},
		{name: "unknown event", raw: `{"event":"reboot"}`, wantErr: true},
		{name: "missing event", raw: `{"data":{}}`, wantErr: true},
		{name: "not json", raw: `start`, wantErr: true},
		{name: "bad data type", raw: `{"event":"start_monitoring","data":{"networks":"Home"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientEvent([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartMonitoringFocus(t *testing.T) {
	assert.Nil(t, StartMonitoring{}.Focus())
	assert.Equal(t, []string{"A", "B", "C"}, StartMonitoring{SSID: "A", Networks: []string{"B", "", "C"}}.Focus())
}

func TestEncodeClientEvent(t *testing.T) {
	raw, err := EncodeClientEvent(SelectNetwork{SSID: "Home", Action: "add"})
	require.NoError(t, err)

	decoded, err := DecodeClientEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, SelectNetwork{SSID: "Home", Action: "add"}, decoded)
}
