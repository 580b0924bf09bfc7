package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/monitor"
)

// handleMonitorCommand processes monitor subcommands
func (s *CLIServer) handleMonitorCommand(args []string) CLIResponse {
	if s.monitor == nil {
		return errorResponse("Monitor not available")
	}
	if len(args) == 0 {
		return errorResponse("Monitor command requires an action (start, stop, select, status)")
	}

	switch args[0] {
	case "start":
		return s.handleMonitorStart(args[1:])
	case "stop":
		return s.handleMonitorStop()
	case "select":
		return s.handleMonitorSelect(args[1:])
	case "status":
		return s.monitorResponse("Monitor status retrieved")
	default:
		return errorResponse(fmt.Sprintf("Unknown monitor action: %s (supported: start, stop, select, status)", args[0]))
	}
}

func (s *CLIServer) handleMonitorStart(focus []string) CLIResponse {
	if err := s.monitor.Start(focus...); err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			return s.monitorResponse("Monitoring already active")
		}
		return errorResponse(fmt.Sprintf("Failed to start monitoring: %v", err))
	}
	cliLogger.WithField("focus", focus).Info("Monitoring started from CLI")
	return s.monitorResponse("Monitoring started")
}

func (s *CLIServer) handleMonitorStop() CLIResponse {
	if !s.monitor.Stop() {
		return s.monitorResponse("Monitoring was not active")
	}
	cliLogger.Info("Monitoring stopped from CLI")
	return s.monitorResponse("Monitoring stopped")
}

func (s *CLIServer) handleMonitorSelect(args []string) CLIResponse {
	if len(args) == 0 {
		return errorResponse("Select requires an SSID and an optional action (add, remove, toggle, set)")
	}
	action := monitor.ActionSet
	if len(args) > 1 {
		action = strings.ToLower(args[1])
	}
	selected, err := s.monitor.Select(args[0], action)
	if err != nil {
		return errorResponse(err.Error())
	}
	return CLIResponse{
		Success: true,
		Message: fmt.Sprintf("Selection updated (%s)", action),
		Data: MonitorResult{
			Running:          s.monitor.Status().Running,
			SelectedNetworks: selected,
		},
		Timestamp: time.Now(),
	}
}

func (s *CLIServer) monitorResponse(message string) CLIResponse {
	st := s.monitor.Status()
	return CLIResponse{
		Success: true,
		Message: message,
		Data: MonitorResult{
			Running:          st.Running,
			SelectedNetworks: st.SelectedNetworks,
		},
		Timestamp: time.Now(),
	}
}
