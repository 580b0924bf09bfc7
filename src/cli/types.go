package cli

import (
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// CLIMessage represents communication between CLI client and service
type CLIMessage struct {
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Flags     map[string]string `json:"flags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// CLIResponse represents a response from the service
type CLIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ServiceStatus represents basic service status
type ServiceStatus struct {
	Running          bool     `json:"running"`
	Version          string   `json:"version"`
	Uptime           string   `json:"uptime"`
	Monitoring       bool     `json:"monitoring"`
	SelectedNetworks []string `json:"selected_networks"`
	MLAvailable      bool     `json:"ml_available"`
	ModelType        string   `json:"model_type"`
}

// ScanResult is the payload of the scan command.
type ScanResult struct {
	Source    string                       `json:"source"`
	Count     int                          `json:"count"`
	Networks  []signal_quality.Observation `json:"networks"`
	ScannedAt time.Time                    `json:"scanned_at"`
}

// MonitorResult is the payload of the monitor subcommands.
type MonitorResult struct {
	Running          bool     `json:"running"`
	SelectedNetworks []string `json:"selected_networks"`
}
