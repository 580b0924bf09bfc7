package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/config_manager"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/data_collector"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/events"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_model"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Survey signal strength at a location",
	Long: `Scan at one location (--x, --y, --name) or over a grid (--rows, --cols, --spacing)
and append the results to the survey CSV used for training.`,
	RunE: runCollect,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a location model from survey data",
	Long:  "Clean the survey CSV, grid-search a k-nearest-neighbours model and save the model bundle",
	RunE:  runTrain,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live events from the service",
	Long:  "Connect to the event stream and print every event until interrupted",
	RunE:  runWatch,
}

func init() {
	collectCmd.Flags().String("config", "", "Config file (defaults to $"+config_manager.ConfigPathEnv+")")
	collectCmd.Flags().String("output", "", "Survey CSV file (overrides config)")
	collectCmd.Flags().Float64("x", 0, "Location x coordinate in metres")
	collectCmd.Flags().Float64("y", 0, "Location y coordinate in metres")
	collectCmd.Flags().String("name", "", "Location name")
	collectCmd.Flags().Int("scans", 0, "Scans per location (overrides config)")
	collectCmd.Flags().Duration("delay", -1, "Delay between scans (overrides config)")
	collectCmd.Flags().Int("rows", 0, "Grid survey rows")
	collectCmd.Flags().Int("cols", 0, "Grid survey columns")
	collectCmd.Flags().Float64("spacing", 1, "Grid spacing in metres")

	trainCmd.Flags().String("data", data_collector.DefaultOutputFile, "Survey CSV file")
	trainCmd.Flags().String("out", "signal_model.json", "Model bundle output path")
	trainCmd.Flags().String("ssid", "", "Only train on this network")
	trainCmd.Flags().Uint64("seed", 42, "Shuffle seed")

	watchCmd.Flags().String("url", "ws://localhost:8080/ws", "Event stream URL")
	watchCmd.Flags().Bool("start", false, "Start monitoring after connecting")
	watchCmd.Flags().StringSlice("ssid", nil, "Networks to focus on when starting")
}

func loadConfig(path string) (*config_manager.Config, error) {
	if path == "" {
		path = config_manager.ConfigPath()
	}
	config, err := config_manager.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = config_manager.NewDefaultConfig()
	}
	config_manager.ApplyEnvOverrides(config)
	return config, config.Validate()
}

func collectorOptions(cmd *cobra.Command, config *config_manager.Config) data_collector.Options {
	opts := config.Collector.CollectorOptions()
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		opts.OutputFile = output
	}
	if scans, _ := cmd.Flags().GetInt("scans"); scans > 0 {
		opts.ScansPerLocation = scans
	}
	if delay, _ := cmd.Flags().GetDuration("delay"); delay >= 0 {
		opts.ScanDelay = delay
	}
	return opts
}

func runCollect(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	scanner, err := wireless_scanner.New(config.Scanner.ScannerOptions())
	if err != nil {
		return err
	}
	collector := data_collector.New(scanner, collectorOptions(cmd, config))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rows, _ := cmd.Flags().GetInt("rows")
	cols, _ := cmd.Flags().GetInt("cols")
	if rows > 0 || cols > 0 {
		spacing, _ := cmd.Flags().GetFloat64("spacing")
		if _, err := collector.CollectGrid(ctx, rows, cols, spacing); err != nil {
			return err
		}
	} else {
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = fmt.Sprintf("Point_%g_%g", x, y)
		}
		if _, err := collector.CollectAt(ctx, data_collector.Location{X: x, Y: y, Name: name}); err != nil {
			return err
		}
	}

	summary, err := collector.Summary()
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func printSummary(out io.Writer, s data_collector.Summary) {
	fmt.Fprintln(out, "Survey Summary")
	fmt.Fprintln(out, "==============")
	fmt.Fprintf(out, "Total data points: %d\n", s.TotalPoints)
	fmt.Fprintf(out, "Unique locations:  %d\n", s.UniqueLocations)
	fmt.Fprintf(out, "Unique networks:   %d\n", s.UniqueNetworks)
	fmt.Fprintf(out, "Average RSSI:      %.2f dBm\n", s.AverageRSSI)
	fmt.Fprintf(out, "Output file:       %s\n", s.OutputFile)
}

func runTrain(cmd *cobra.Command, args []string) error {
	dataPath, _ := cmd.Flags().GetString("data")
	outPath, _ := cmd.Flags().GetString("out")
	ssid, _ := cmd.Flags().GetString("ssid")
	seed, _ := cmd.Flags().GetUint64("seed")

	samples, err := data_collector.LoadSamples(dataPath, ssid)
	if err != nil {
		return fmt.Errorf("failed to load survey data: %w", err)
	}

	opts := signal_model.DefaultTrainOptions()
	opts.Seed = seed
	bundle, err := signal_model.Train(samples, opts)
	if err != nil {
		return err
	}
	if err := bundle.Save(outPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	m := bundle.Metrics
	fmt.Fprintf(out, "Trained %s on %d samples (%d held out)\n", bundle.ModelName, m.TrainSamples, m.TestSamples)
	fmt.Fprintf(out, "Best params: k=%d weights=%s metric=%s (cv mse %.3f)\n",
		m.BestParams.K, m.BestParams.Weights, m.BestParams.Metric, m.CVMSE)
	fmt.Fprintf(out, "Train RMSE %.3f  MAE %.3f  R2 %.3f\n", m.TrainRMSE, m.TrainMAE, m.TrainR2)
	fmt.Fprintf(out, "Test  RMSE %.3f  MAE %.3f  R2 %.3f\n", m.TestRMSE, m.TestMAE, m.TestR2)
	fmt.Fprintf(out, "Model saved to %s\n", outPath)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	start, _ := cmd.Flags().GetBool("start")
	focus, _ := cmd.Flags().GetStringSlice("ssid")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect (%s): %w", resp.Status, err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if start {
		msg, err := events.EncodeClientEvent(events.StartMonitoring{Networks: focus})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("failed to start monitoring: %w", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	done := make(chan error, 1)
	go func() {
		done <- printEvents(cmd.OutOrStdout(), conn)
	}()

	select {
	case err := <-done:
		return err
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
}

// printEvents writes one line per envelope until the connection closes.
func printEvents(out io.Writer, conn *websocket.Conn) error {
	for {
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("event stream closed: %w", err)
			}
			return nil
		}
		fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.TimeOnly), env.Event, compactJSON(env.Data))
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
