// Package events defines the typed messages exchanged over the event stream.
// Every message travels in an Envelope naming the event.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// Name is the wire name of an event.
type Name string

// Server to client events.
const (
	ConnectionStatusEvent Name = "connection_status"
	MonitoringStatusEvent Name = "monitoring_status"
	NetworksUpdateEvent   Name = "networks_update"
	SignalUpdateEvent     Name = "signal_update"
	ErrorEvent            Name = "error"
)

// Client to server events.
const (
	StartMonitoringEvent Name = "start_monitoring"
	StopMonitoringEvent  Name = "stop_monitoring"
	SelectNetworkEvent   Name = "select_network"
	ScanOnceEvent        Name = "scan_once"
)

// Monitoring status values.
const (
	StatusStarted         = "started"
	StatusAlreadyRunning  = "already_running"
	StatusStopped         = "stopped"
	StatusNetworkSelected = "network_selected"
)

// ErrInvalidEvent is returned for client messages that fail validation.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a server to client message.
type Event interface {
	EventName() Name
}

// Envelope is the wire framing for every message.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Timestamp formats t the way every event carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type ConnectionStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ClientID  string `json:"client_id"`
	Timestamp string `json:"timestamp"`
}

func (ConnectionStatus) EventName() Name { return ConnectionStatusEvent }

type MonitoringStatus struct {
	Status           string   `json:"status"`
	Message          string   `json:"message"`
	SelectedNetwork  string   `json:"selected_network,omitempty"`
	SelectedNetworks []string `json:"selected_networks"`
}

func (MonitoringStatus) EventName() Name { return MonitoringStatusEvent }

type NetworksUpdate struct {
	Networks  []signal_quality.Observation `json:"networks"`
	Timestamp string                       `json:"timestamp"`
	Count     int                          `json:"count"`
}

func (NetworksUpdate) EventName() Name { return NetworksUpdateEvent }

// NewNetworksUpdate builds the snapshot event. A nil slice is sent as [].
func NewNetworksUpdate(networks []signal_quality.Observation, at time.Time) NetworksUpdate {
	if networks == nil {
		networks = []signal_quality.Observation{}
	}
	return NetworksUpdate{Networks: networks, Timestamp: Timestamp(at), Count: len(networks)}
}

type SignalUpdate struct {
	SSID           string                 `json:"ssid"`
	SignalStrength int                    `json:"signal_strength"`
	SignalQuality  int                    `json:"signal_quality"`
	Frequency      string                 `json:"frequency"`
	Channel        signal_quality.Channel `json:"channel"`
	Security       string                 `json:"security"`
	Timestamp      string                 `json:"timestamp"`
}

func (SignalUpdate) EventName() Name { return SignalUpdateEvent }

// NewSignalUpdate builds the per-network detail event.
func NewSignalUpdate(obs signal_quality.Observation, at time.Time) SignalUpdate {
	return SignalUpdate{
		SSID:           obs.SSID,
		SignalStrength: obs.SignalStrength,
		SignalQuality:  obs.SignalQuality,
		Frequency:      obs.Frequency,
		Channel:        obs.Channel,
		Security:       obs.Security,
		Timestamp:      Timestamp(at),
	}
}

type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() Name { return ErrorEvent }

// Encode wraps an event in its envelope.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.EventName(), err)
	}
	return json.Marshal(Envelope{Event: e.EventName(), Data: data})
}

// Decode parses a server event envelope back into its typed form.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var e Event
	switch env.Event {
	case ConnectionStatusEvent:
		var v ConnectionStatus
		if err := unmarshalData(env.Data, &v); err != nil {
			return nil, err
		}
		e = v
	case MonitoringStatusEvent:
		var v MonitoringStatus
		if err := unmarshalData(env.Data, &v); err != nil {
			return nil, err
		}
		e = v
	case NetworksUpdateEvent:
		var v NetworksUpdate
		if err := unmarshalData(env.Data, &v); err != nil {
			return nil, err
		}
		e = v
	case SignalUpdateEvent:
		var v SignalUpdate
		if err := unmarshalData(env.Data, &v); err != nil {
			return nil, err
		}
		e = v
	case ErrorEvent:
		var v Error
		if err := unmarshalData(env.Data, &v); err != nil {
			return nil, err
		}
		e = v
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidEvent, env.Event)
	}
	return e, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// ClientEvent is a validated client to server request.
type ClientEvent interface {
	ClientEventName() Name
}

// StartMonitoring carries an optional focus: one SSID or a list.
type StartMonitoring struct {
	SSID     string   `json:"ssid,omitempty"`
	Networks []string `json:"networks,omitempty"`
}

func (StartMonitoring) ClientEventName() Name { return StartMonitoringEvent }

// Focus returns the requested selection, SSID first.
func (s StartMonitoring) Focus() []string {
	var focus []string
	if s.SSID != "" {
		focus = append(focus, s.SSID)
	}
	for _, n := range s.Networks {
		if n != "" {
			focus = append(focus, n)
		}
	}
	return focus
}

type StopMonitoring struct{}

func (StopMonitoring) ClientEventName() Name { return StopMonitoringEvent }

type SelectNetwork struct {
	SSID   string `json:"ssid"`
	Action string `json:"action,omitempty"`
}

func (SelectNetwork) ClientEventName() Name { return SelectNetworkEvent }

type ScanOnce struct{}

func (ScanOnce) ClientEventName() Name { return ScanOnceEvent }

// DecodeClientEvent parses and validates one client message.
func DecodeClientEvent(raw []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	switch env.Event {
	case StartMonitoringEvent:
		var req StartMonitoring
		if err := unmarshalData(env.Data, &req); err != nil {
			return nil, err
		}
		return req, nil
	case StopMonitoringEvent:
		return StopMonitoring{}, nil
	case SelectNetworkEvent:
		var req SelectNetwork
		if err := unmarshalData(env.Data, &req); err != nil {
			return nil, err
		}
		req.Action = strings.ToLower(strings.TrimSpace(req.Action))
		if req.SSID == "" && req.Action != "" && req.Action != "set" {
			return nil, fmt.Errorf("%w: select_network requires an ssid", ErrInvalidEvent)
		}
		return req, nil
	case ScanOnceEvent:
		return ScanOnce{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrInvalidEvent)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidEvent, env.Event)
	}
}

// EncodeClientEvent wraps a client request in its envelope.
func EncodeClientEvent(e ClientEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.ClientEventName(), Data: data})
}
