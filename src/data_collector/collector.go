// Package data_collector records signal surveys to CSV and turns them back
// into training samples for the location model.
package data_collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/wireless_scanner"
)

const (
	DefaultOutputFile       = "wifi_signal_data.csv"
	DefaultScansPerLocation = 3
	DefaultScanDelay        = 2 * time.Second
)

var ErrInvalidGrid = errors.New("grid dimensions and spacing must be positive")

// Options configures a Collector. Zero values select the defaults.
type Options struct {
	OutputFile       string
	ScansPerLocation int
	ScanDelay        time.Duration
}

// Collector appends scan results for surveyed locations to a CSV file.
type Collector struct {
	scanner   wireless_scanner.Scanner
	opts      Options
	sessionID string
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// New builds a collector writing to opts.OutputFile.
func New(scanner wireless_scanner.Scanner, opts Options) *Collector {
	if opts.OutputFile == "" {
		opts.OutputFile = DefaultOutputFile
	}
	if opts.ScansPerLocation <= 0 {
		opts.ScansPerLocation = DefaultScansPerLocation
	}
	if opts.ScanDelay < 0 {
		opts.ScanDelay = 0
	}
	return &Collector{
		scanner:   scanner,
		opts:      opts,
		sessionID: uuid.New().String(),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// OutputFile returns the CSV path this collector writes to.
func (c *Collector) OutputFile() string {
	return c.opts.OutputFile
}

// CollectAt scans ScansPerLocation times at loc, waiting ScanDelay between
// scans, and appends one row per network seen. It returns the rows written.
func (c *Collector) CollectAt(ctx context.Context, loc Location) ([]Record, error) {
	log := logger.WithFields(logrus.Fields{
		"session":  c.sessionID,
		"location": loc.Name,
		"x":        loc.X,
		"y":        loc.Y,
	})
	log.Info("Collecting data at location")

	var records []Record
	for scan := 1; scan <= c.opts.ScansPerLocation; scan++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		snap := c.scanner.Scan(ctx)
		at := c.now()
		for _, obs := range snap.Networks {
			records = append(records, newRecord(at, loc, obs, scan))
		}
		log.WithFields(logrus.Fields{
			"scan":     scan,
			"networks": snap.Count(),
			"source":   snap.Source,
		}).Debug("Scan complete")

		if scan < c.opts.ScansPerLocation {
			if err := c.sleep(ctx, c.opts.ScanDelay); err != nil {
				return records, err
			}
		}
	}

	if err := c.appendRecords(records); err != nil {
		log.WithError(err).Error("Failed to save survey data")
		return nil, err
	}
	log.WithField("rows", len(records)).Info("Saved survey data")
	return records, nil
}

// CollectLocations surveys each location in order.
func (c *Collector) CollectLocations(ctx context.Context, locations []Location) (int, error) {
	total := 0
	for _, loc := range locations {
		records, err := c.CollectAt(ctx, loc)
		total += len(records)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// CollectGrid surveys a rows x cols grid with the given spacing in metres.
func (c *Collector) CollectGrid(ctx context.Context, rows, cols int, spacing float64) (int, error) {
	grid, err := GridLocations(rows, cols, spacing)
	if err != nil {
		return 0, err
	}
	logger.WithFields(logrus.Fields{
		"rows":    rows,
		"cols":    cols,
		"spacing": spacing,
		"points":  len(grid),
	}).Info("Starting grid survey")
	return c.CollectLocations(ctx, grid)
}

// GridLocations lays out survey points row by row.
func GridLocations(rows, cols int, spacing float64) ([]Location, error) {
	if rows <= 0 || cols <= 0 || spacing <= 0 {
		return nil, ErrInvalidGrid
	}
	out := make([]Location, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			out = append(out, Location{
				X:    float64(col) * spacing,
				Y:    float64(r) * spacing,
				Name: fmt.Sprintf("Grid_%d_%d", r, col),
			})
		}
	}
	return out, nil
}

func (c *Collector) appendRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	path := c.opts.OutputFile
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	writeHeader := false
	if info, err := os.Stat(path); errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(Columns); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := w.Write(r.row()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
