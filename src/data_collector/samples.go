package data_collector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_model"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

const (
	MinValidRSSI = -100
	MaxValidRSSI = -20
)

var ErrMissingColumns = errors.New("survey file is missing required columns")

var requiredColumns = []string{"location_x", "location_y", "rssi_dbm"}

// LoadRecords reads a survey CSV. Rows that cannot be parsed are skipped.
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords decodes survey rows from r using its header line.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumns, col)
		}
	}

	var out []Record
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row, index)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	if skipped > 0 {
		logger.WithField("skipped", skipped).Warn("Skipped unparsable survey rows")
	}
	return out, nil
}

// Clean drops exact duplicates and rows with RSSI outside
// [MinValidRSSI, MaxValidRSSI], and clamps quality to 0..100.
func Clean(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.RSSI < MinValidRSSI || r.RSSI > MaxValidRSSI {
			continue
		}
		key := fmt.Sprint(r.row())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.SignalQuality = signal_quality.ClampQuality(r.SignalQuality)
		out = append(out, r)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		logger.WithField("dropped", dropped).Info("Removed invalid or duplicate rows")
	}
	return out
}

// LoadSamples reads and cleans a survey file into training samples.
// A non-empty ssid restricts the samples to that network.
func LoadSamples(path, ssid string) ([]signal_model.Sample, error) {
	records, err := LoadRecords(path)
	if err != nil {
		return nil, err
	}
	return Samples(Clean(records), ssid), nil
}

// Samples converts records into (x, y, rssi) training points.
func Samples(records []Record, ssid string) []signal_model.Sample {
	out := make([]signal_model.Sample, 0, len(records))
	for _, r := range records {
		if ssid != "" && r.SSID != ssid {
			continue
		}
		out = append(out, signal_model.Sample{
			X:    r.Location.X,
			Y:    r.Location.Y,
			RSSI: float64(r.RSSI),
		})
	}
	return out
}

// Summary describes a survey file.
type Summary struct {
	TotalPoints     int     `json:"total_points"`
	UniqueLocations int     `json:"unique_locations"`
	UniqueNetworks  int     `json:"unique_networks"`
	AverageRSSI     float64 `json:"average_rssi"`
	OutputFile      string  `json:"output_file"`
}

// Summarize counts points, distinct (x, y) locations and SSIDs, and the mean
// RSSI rounded to two decimals.
func Summarize(records []Record) Summary {
	s := Summary{TotalPoints: len(records)}
	if len(records) == 0 {
		return s
	}
	locations := make(map[[2]float64]struct{})
	networks := make(map[string]struct{})
	sum := 0.0
	for _, r := range records {
		locations[[2]float64{r.Location.X, r.Location.Y}] = struct{}{}
		networks[r.SSID] = struct{}{}
		sum += float64(r.RSSI)
	}
	s.UniqueLocations = len(locations)
	s.UniqueNetworks = len(networks)
	s.AverageRSSI = math.Round(sum/float64(len(records))*100) / 100
	return s
}

// Summary reads back the collector's output file.
func (c *Collector) Summary() (Summary, error) {
	records, err := LoadRecords(c.opts.OutputFile)
	if err != nil {
		return Summary{}, err
	}
	s := Summarize(records)
	s.OutputFile = c.opts.OutputFile
	return s, nil
}

// Aggregate is the RSSI distribution of one network at one location.
type Aggregate struct {
	Location Location
	SSID     string
	MeanRSSI float64
	StdRSSI  float64
	MinRSSI  int
	MaxRSSI  int
	Count    int
}

// AggregateByLocation groups records by (x, y, name, ssid), ordered by
// first appearance.
func AggregateByLocation(records []Record) []Aggregate {
	type key struct {
		loc  Location
		ssid string
	}
	index := make(map[key]int)
	var groups [][]int
	var keys []key
	for _, r := range records {
		k := key{r.Location, r.SSID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
			keys = append(keys, k)
		}
		groups[i] = append(groups[i], r.RSSI)
	}

	out := make([]Aggregate, len(groups))
	for i, values := range groups {
		out[i] = aggregate(keys[i].loc, keys[i].ssid, values)
	}
	return out
}

func aggregate(loc Location, ssid string, values []int) Aggregate {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / float64(len(values))
	std := 0.0
	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			d := float64(v) - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(len(values)-1))
	}
	return Aggregate{
		Location: loc,
		SSID:     ssid,
		MeanRSSI: mean,
		StdRSSI:  std,
		MinRSSI:  sorted[0],
		MaxRSSI:  sorted[len(sorted)-1],
		Count:    len(values),
	}
}
