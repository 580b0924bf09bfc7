// Package cli serves operator commands over a Unix socket using
// newline-delimited JSON messages.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/predictor"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

const (
	DefaultSocketPath = "/var/run/signal-analyzer.sock"
	SocketPermissions = 0666

	scanTimeout = 30 * time.Second
)

var cliLogger = logrus.WithField("module", "cli")

// MonitorController is the part of the monitor the CLI drives.
type MonitorController interface {
	Start(focus ...string) error
	Stop() bool
	Select(ssid, action string) ([]string, error)
	ScanOnce(ctx context.Context) (wireless_scanner.Snapshot, error)
	Status() monitor.Status
}

// Predictor answers predict commands.
type Predictor interface {
	Predict(req predictor.Request) (predictor.Result, error)
	Available() bool
	ModelType() string
}

// CLIServer handles Unix socket communication for CLI commands
type CLIServer struct {
	socketPath string
	monitor    MonitorController
	predictor  Predictor
	startTime  time.Time

	mu       sync.Mutex
	listener net.Listener
	running  bool
	wg       sync.WaitGroup
}

// NewCLIServer creates a new CLI server instance
func NewCLIServer(socketPath string, mon MonitorController, pred Predictor) *CLIServer {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &CLIServer{
		socketPath: socketPath,
		monitor:    mon,
		predictor:  pred,
		startTime:  time.Now(),
	}
}

// Start begins listening on the Unix socket
func (s *CLIServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	// Remove a stale socket left by a previous run
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	// Set socket permissions so CLI can access it
	if err := os.Chmod(s.socketPath, SocketPermissions); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	cliLogger.WithField("socket_path", s.socketPath).Info("CLI server started")

	s.wg.Add(1)
	go s.acceptConnections(listener)

	return nil
}

// Stop shuts down the CLI server
func (s *CLIServer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	listener.Close()
	s.wg.Wait()
	os.Remove(s.socketPath)

	cliLogger.Info("CLI server stopped")
	return nil
}

func (s *CLIServer) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// acceptConnections handles incoming connections
func (s *CLIServer) acceptConnections(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !s.isRunning() || errors.Is(err, net.ErrClosed) {
				return
			}
			cliLogger.WithError(err).Error("Failed to accept connection")
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection processes a single CLI connection
func (s *CLIServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, 8192)

	// Read until newline (our protocol sends data + \n)
	data, err := reader.ReadBytes('\n')
	if err != nil {
		cliLogger.WithError(err).Error("Failed to read from connection")
		return
	}

	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	cliLogger.WithField("data_length", len(data)).Debug("Received CLI message")

	var msg CLIMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		cliLogger.WithError(err).Error("Failed to unmarshal CLI message")
		s.sendError(conn, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	response := s.processCommand(msg)
	s.sendResponse(conn, response)
}

// processCommand executes the CLI command and returns a response
func (s *CLIServer) processCommand(msg CLIMessage) CLIResponse {
	cliLogger.WithFields(logrus.Fields{
		"command": msg.Command,
		"args":    msg.Args,
	}).Debug("Processing CLI command")

	switch msg.Command {
	case "status":
		return s.handleStatusCommand()
	case "version":
		return s.handleVersionCommand()
	case "scan":
		return s.handleScanCommand()
	case "monitor":
		return s.handleMonitorCommand(msg.Args)
	case "predict":
		return s.handlePredictCommand(msg.Flags)
	default:
		return errorResponse(fmt.Sprintf("Unknown command: %s", msg.Command))
	}
}

// handleStatusCommand returns service status
func (s *CLIServer) handleStatusCommand() CLIResponse {
	status := ServiceStatus{
		Running:   true,
		Version:   GetVersionInfo(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		ModelType: "None",
	}
	if s.monitor != nil {
		st := s.monitor.Status()
		status.Monitoring = st.Running
		status.SelectedNetworks = st.SelectedNetworks
	}
	if s.predictor != nil {
		status.MLAvailable = s.predictor.Available()
		status.ModelType = s.predictor.ModelType()
	}

	return CLIResponse{
		Success:   true,
		Message:   "Service status retrieved",
		Data:      status,
		Timestamp: time.Now(),
	}
}

// handleVersionCommand returns version information
func (s *CLIServer) handleVersionCommand() CLIResponse {
	return CLIResponse{
		Success:   true,
		Message:   GetFormattedVersionInfo(),
		Timestamp: time.Now(),
	}
}

// handleScanCommand runs one scan. Stream clients see it as a networks update.
func (s *CLIServer) handleScanCommand() CLIResponse {
	if s.monitor == nil {
		return errorResponse("Monitor not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	snap, err := s.monitor.ScanOnce(ctx)
	if err != nil {
		cliLogger.WithError(err).Warn("Scan published with errors")
	}
	return CLIResponse{
		Success: true,
		Message: fmt.Sprintf("Found %d networks (source: %s)", snap.Count(), snap.Source),
		Data: ScanResult{
			Source:    string(snap.Source),
			Count:     snap.Count(),
			Networks:  snap.Networks,
			ScannedAt: snap.ScannedAt,
		},
		Timestamp: time.Now(),
	}
}

// handlePredictCommand predicts from --x/--y or --signal flags.
func (s *CLIServer) handlePredictCommand(flags map[string]string) CLIResponse {
	if s.predictor == nil {
		return errorResponse("Predictor not available")
	}
	req, err := requestFromFlags(flags)
	if err != nil {
		return errorResponse(err.Error())
	}

	result, err := s.predictor.Predict(req)
	if err != nil {
		return errorResponse(err.Error())
	}
	message := "Prediction from signal strength"
	if result.MLPowered {
		message = fmt.Sprintf("Prediction from %s model", s.predictor.ModelType())
	}
	return CLIResponse{
		Success:   true,
		Message:   message,
		Data:      result.Prediction,
		Timestamp: time.Now(),
	}
}

func requestFromFlags(flags map[string]string) (predictor.Request, error) {
	req := predictor.Request{SSID: flags["ssid"]}
	parse := func(name string) (*float64, error) {
		raw, ok := flags[name]
		if !ok || raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s value %q", name, raw)
		}
		return &v, nil
	}

	var err error
	if req.LocationX, err = parse("x"); err != nil {
		return req, err
	}
	if req.LocationY, err = parse("y"); err != nil {
		return req, err
	}
	if req.SignalStrength, err = parse("signal"); err != nil {
		return req, err
	}
	return req, nil
}

// sendResponse sends a CLIResponse back to the client
func (s *CLIServer) sendResponse(conn net.Conn, response CLIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		cliLogger.WithError(err).Error("Failed to marshal response")
		return
	}

	conn.Write(append(data, '\n'))
}

// sendError sends an error response to the client
func (s *CLIServer) sendError(conn net.Conn, errorMsg string) {
	s.sendResponse(conn, errorResponse(errorMsg))
}

func errorResponse(msg string) CLIResponse {
	return CLIResponse{
		Success:   false,
		Error:     msg,
		Timestamp: time.Now(),
	}
}
