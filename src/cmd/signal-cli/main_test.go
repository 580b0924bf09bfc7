package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/cli"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/data_collector"
)

func newPredictCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "predict"}
	cmd.Flags().String("ssid", "", "")
	cmd.Flags().Float64("signal", 0, "")
	cmd.Flags().Float64("x", 0, "")
	cmd.Flags().Float64("y", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestPredictFlags(t *testing.T) {
	flags, err := predictFlags(newPredictCmd(t, "--ssid", "Home", "--signal", "-60"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ssid": "Home", "signal": "-60"}, flags)

	flags, err = predictFlags(newPredictCmd(t, "--x", "1.5", "--y", "0"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "1.5", "y": "0"}, flags)

	_, err = predictFlags(newPredictCmd(t, "--x", "1"))
	assert.Error(t, err)
	_, err = predictFlags(newPredictCmd(t, "--ssid", "Home"))
	assert.Error(t, err)
}

func TestSendCommand(t *testing.T) {
	dir, err := os.MkdirTemp("", "sa")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "cli.sock")

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan cli.CLIMessage, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadBytes('\n')
		var msg cli.CLIMessage
		json.Unmarshal(line, &msg)
		received <- msg
		data, _ := json.Marshal(cli.CLIResponse{Success: true, Message: "ok"})
		conn.Write(append(data, '\n'))
	}()

	resp, err := sendCommand(path, cli.CLIMessage{Command: "monitor", Args: []string{"start", "Home"}})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Message)

	msg := <-received
	assert.Equal(t, "monitor", msg.Command)
	assert.Equal(t, []string{"start", "Home"}, msg.Args)

	_, err = sendCommand(filepath.Join(dir, "missing.sock"), cli.CLIMessage{Command: "status"})
	assert.Error(t, err)
}

func TestDisplayData(t *testing.T) {
	var out bytes.Buffer
	displayData(&out, map[string]interface{}{
		"running":           true,
		"selected_networks": []interface{}{"Cafe", "Home"},
		"nested":            map[string]interface{}{"a": 1.0},
	})
	assert.Equal(t, "nested:\n  a: 1\nrunning: true\nselected_networks: [Cafe, Home]\n", out.String())

	out.Reset()
	displayData(&out, map[string]interface{}{
		"networks": []interface{}{
			map[string]interface{}{"ssid": "Home", "signal_strength": -55.0, "signal_quality": 58.0, "frequency": "2.4 GHz (Ch 6)", "security": "WPA2"},
		},
	})
	assert.Contains(t, out.String(), "Home")
	assert.Contains(t, out.String(), "58%")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, data_collector.Summary{TotalPoints: 8, UniqueLocations: 4, UniqueNetworks: 2, AverageRSSI: -67.5, OutputFile: "x.csv"})
	assert.Contains(t, out.String(), "Total data points: 8")
	assert.Contains(t, out.String(), "Average RSSI:      -67.50 dBm")
}
