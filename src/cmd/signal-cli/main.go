package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/cli"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "signal-cli",
	Short: "Signal Analyzer CLI - Control your Signal Analyzer instance",
	Long: `Signal Analyzer CLI provides command-line access to the running signal analyzer service.
You can check status, scan, control monitoring and request predictions. The collect,
train and watch commands work without the service socket.`,
	SilenceUsage: true,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	Long:  "Display service status including uptime, monitoring state and model availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "status", nil, nil)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "version", nil, nil)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan",
	Long:  "Scan once and list visible networks with their signal quality",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "scan", nil, nil)
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitoring operations",
	Long:  "Start or stop continuous monitoring and manage the selected networks",
}

var monitorStartCmd = &cobra.Command{
	Use:   "start [ssid...]",
	Short: "Start monitoring, optionally focused on some networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "monitor", append([]string{"start"}, args...), nil)
	},
}

var monitorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop monitoring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "monitor", []string{"stop"}, nil)
	},
}

var monitorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitoring state and selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "monitor", []string{"status"}, nil)
	},
}

var monitorSelectCmd = &cobra.Command{
	Use:   "select <ssid> [add|remove|toggle|set]",
	Short: "Change the selected networks",
	Long:  "Add, remove or toggle a network in the selection, or replace the selection with it (default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommandAndDisplay(cmd.OutOrStdout(), "monitor", append([]string{"select"}, args...), nil)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict signal quality",
	Long: `Predict signal quality from a signal strength (--signal, optionally --ssid) or, when the
service has a trained model loaded, from a location (--x and --y).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags, err := predictFlags(cmd)
		if err != nil {
			return err
		}
		return sendCommandAndDisplay(cmd.OutOrStdout(), "predict", nil, flags)
	},
}

func predictFlags(cmd *cobra.Command) (map[string]string, error) {
	flags := map[string]string{}
	if ssid, _ := cmd.Flags().GetString("ssid"); ssid != "" {
		flags["ssid"] = ssid
	}
	for _, name := range []string{"signal", "x", "y"} {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetFloat64(name)
			flags[name] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	if cmd.Flags().Changed("x") != cmd.Flags().Changed("y") {
		return nil, fmt.Errorf("--x and --y must be given together")
	}
	if len(flags) == 0 || (len(flags) == 1 && flags["ssid"] != "") {
		return nil, fmt.Errorf("provide --signal or --x/--y")
	}
	return flags, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", cli.DefaultSocketPath, "Path to the service control socket")

	predictCmd.Flags().String("ssid", "", "Network name for signal-strength predictions")
	predictCmd.Flags().Float64("signal", 0, "Signal strength in dBm")
	predictCmd.Flags().Float64("x", 0, "Location x coordinate in metres")
	predictCmd.Flags().Float64("y", 0, "Location y coordinate in metres")

	monitorCmd.AddCommand(monitorStartCmd, monitorStopCmd, monitorStatusCmd, monitorSelectCmd)
	rootCmd.AddCommand(statusCmd, versionCmd, scanCmd, monitorCmd, predictCmd)
	rootCmd.AddCommand(collectCmd, trainCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func sendCommandAndDisplay(out io.Writer, command string, args []string, flags map[string]string) error {
	msg := cli.CLIMessage{
		Command:   command,
		Args:      args,
		Flags:     flags,
		Timestamp: time.Now(),
	}

	response, err := sendCommand(socketPath, msg)
	if err != nil {
		return fmt.Errorf("failed to communicate with Signal Analyzer service: %v\nMake sure the service is running", err)
	}

	displayResponse(out, response)
	if !response.Success {
		return fmt.Errorf("command failed")
	}
	return nil
}

func sendCommand(path string, msg cli.CLIMessage) (*cli.CLIResponse, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service: %v", err)
	}
	defer conn.Close()

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %v", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send message: %v", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		return nil, fmt.Errorf("no response from service")
	}

	var response cli.CLIResponse
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	return &response, nil
}

func displayResponse(out io.Writer, response *cli.CLIResponse) {
	if !response.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", response.Error)
		return
	}
	if response.Message != "" {
		fmt.Fprintln(out, response.Message)
	}
	if response.Data != nil {
		displayData(out, response.Data)
	}
}

func displayData(out io.Writer, data interface{}) {
	switch v := data.(type) {
	case map[string]interface{}:
		if networks, ok := v["networks"].([]interface{}); ok {
			displayNetworks(out, networks)
		} else {
			displayMap(out, v, "")
		}
	default:
		jsonData, err := json.MarshalIndent(data, "", "  ")
		if err == nil {
			fmt.Fprintln(out, string(jsonData))
		}
	}
}

func displayNetworks(out io.Writer, networks []interface{}) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-32s %8s %8s %-16s %s\n", "SSID", "dBm", "Quality", "Band", "Security")
	for _, n := range networks {
		m, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%-32s %8v %7v%% %-16v %v\n",
			m["ssid"], m["signal_strength"], m["signal_quality"], m["frequency"], m["security"])
	}
}

func displayMap(out io.Writer, m map[string]interface{}, prefix string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := m[key].(type) {
		case map[string]interface{}:
			fmt.Fprintf(out, "%s%s:\n", prefix, key)
			displayMap(out, v, prefix+"  ")
		case []interface{}:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}
			fmt.Fprintf(out, "%s%s: [%s]\n", prefix, key, strings.Join(parts, ", "))
		default:
			fmt.Fprintf(out, "%s%s: %v\n", prefix, key, v)
		}
	}
}
