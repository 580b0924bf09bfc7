package config_manager

import (
	"fmt"
	"strings"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/data_collector"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

// Config represents the main configuration for the signal analyzer service.
type Config struct {
	ConfigVersion string          `json:"config_version" yaml:"config_version"`
	LogLevel      string          `json:"log_level" yaml:"log_level"`
	ListenAddr    string          `json:"listen_addr" yaml:"listen_addr"`
	SocketPath    string          `json:"socket_path" yaml:"socket_path"`
	Scanner       ScannerConfig   `json:"scanner" yaml:"scanner"`
	Monitor       MonitorConfig   `json:"monitor" yaml:"monitor"`
	Model         ModelConfig     `json:"model" yaml:"model"`
	Collector     CollectorConfig `json:"collector" yaml:"collector"`
	Metrics       MetricsConfig   `json:"metrics" yaml:"metrics"`
	CORS          CORSConfig      `json:"cors" yaml:"cors"`
}

// ScannerConfig selects and tunes the platform scan backend.
type ScannerConfig struct {
	Backend          string `json:"backend" yaml:"backend"` // auto, nmcli, iw, netsh, airport, synthetic
	Interface        string `json:"interface" yaml:"interface"`
	UCIConfigRoot    string `json:"uci_config_root" yaml:"uci_config_root"`
	PadSparseResults bool   `json:"pad_sparse_results" yaml:"pad_sparse_results"`
	SyntheticSeed    uint64 `json:"synthetic_seed" yaml:"synthetic_seed"` // 0 = random
}

// MonitorConfig holds the monitor loop timings
type MonitorConfig struct {
	Interval     time.Duration `json:"interval" yaml:"interval"`
	ErrorBackoff time.Duration `json:"error_backoff" yaml:"error_backoff"`
}

// ModelConfig points at a trained model bundle. Empty disables ML predictions.
type ModelConfig struct {
	BundlePath string `json:"bundle_path" yaml:"bundle_path"`
}

// CollectorConfig holds survey defaults for the offline collector.
type CollectorConfig struct {
	OutputFile       string        `json:"output_file" yaml:"output_file"`
	ScansPerLocation int           `json:"scans_per_location" yaml:"scans_per_location"`
	ScanDelay        time.Duration `json:"scan_delay" yaml:"scan_delay"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type CORSConfig struct {
	AllowedOrigin string `json:"allowed_origin" yaml:"allowed_origin"`
}

var knownBackends = map[string]bool{
	"auto":      true,
	"nmcli":     true,
	"iw":        true,
	"netsh":     true,
	"airport":   true,
	"synthetic": true,
}

// NewDefaultConfig creates a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		ConfigVersion: CurrentConfigVersion,
		LogLevel:      "info",
		ListenAddr:    ":8080",
		SocketPath:    "/var/run/signal-analyzer.sock",
		Scanner: ScannerConfig{
			Backend:          "auto",
			UCIConfigRoot:    "/etc/config",
			PadSparseResults: true,
		},
		Monitor: MonitorConfig{
			Interval:     2 * time.Second,
			ErrorBackoff: 5 * time.Second,
		},
		Model: ModelConfig{
			BundlePath: "/etc/signal-analyzer/signal_model.json",
		},
		Collector: CollectorConfig{
			OutputFile:       "wifi_signal_data.csv",
			ScansPerLocation: 3,
			ScanDelay:        2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		CORS: CORSConfig{
			AllowedOrigin: "*",
		},
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	backend := strings.ToLower(c.Scanner.Backend)
	if backend == "" {
		backend = "auto"
	}
	if !knownBackends[backend] {
		return fmt.Errorf("unknown scanner backend %q", c.Scanner.Backend)
	}
	c.Scanner.Backend = backend
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Monitor.ErrorBackoff < 0 {
		return fmt.Errorf("monitor error_backoff must not be negative, got %s", c.Monitor.ErrorBackoff)
	}
	if c.Collector.ScansPerLocation < 0 {
		return fmt.Errorf("collector scans_per_location must not be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

// ScannerOptions maps the scanner section onto wireless_scanner options.
func (c ScannerConfig) ScannerOptions() wireless_scanner.Options {
	return wireless_scanner.Options{
		Backend:          c.Backend,
		Interface:        c.Interface,
		UCIConfigRoot:    c.UCIConfigRoot,
		PadSparseResults: c.PadSparseResults,
		SyntheticSeed:    c.SyntheticSeed,
	}
}

// MonitorOptions maps the monitor section onto monitor options.
func (c MonitorConfig) MonitorOptions() monitor.Config {
	return monitor.Config{
		Interval:     c.Interval,
		ErrorBackoff: c.ErrorBackoff,
	}
}

// CollectorOptions maps the collector section onto data_collector options.
func (c CollectorConfig) CollectorOptions() data_collector.Options {
	return data_collector.Options{
		OutputFile:       c.OutputFile,
		ScansPerLocation: c.ScansPerLocation,
		ScanDelay:        c.ScanDelay,
	}
}
