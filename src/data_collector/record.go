package data_collector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// Columns is the CSV header, in order.
var Columns = []string{
	"timestamp",
	"location_x",
	"location_y",
	"location_name",
	"ssid",
	"bssid",
	"rssi_dbm",
	"signal_quality",
	"frequency",
	"channel",
	"security",
	"scan_number",
}

const unknownBSSID = "Unknown"

// Location is a survey point.
type Location struct {
	X    float64
	Y    float64
	Name string
}

// Record is one CSV row: one network seen by one scan at one location.
type Record struct {
	Timestamp     time.Time
	Location      Location
	SSID          string
	BSSID         string
	RSSI          int
	SignalQuality int
	Frequency     string
	Channel       string
	Security      string
	ScanNumber    int
}

func newRecord(at time.Time, loc Location, obs signal_quality.Observation, scan int) Record {
	bssid := obs.BSSID
	if bssid == "" {
		bssid = unknownBSSID
	}
	return Record{
		Timestamp:     at,
		Location:      loc,
		SSID:          obs.SSID,
		BSSID:         bssid,
		RSSI:          obs.SignalStrength,
		SignalQuality: obs.SignalQuality,
		Frequency:     obs.Frequency,
		Channel:       obs.Channel.String(),
		Security:      obs.Security,
		ScanNumber:    scan,
	}
}

func (r Record) row() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(r.Location.X, 'f', -1, 64),
		strconv.FormatFloat(r.Location.Y, 'f', -1, 64),
		r.Location.Name,
		r.SSID,
		r.BSSID,
		strconv.Itoa(r.RSSI),
		strconv.Itoa(r.SignalQuality),
		r.Frequency,
		r.Channel,
		r.Security,
		strconv.Itoa(r.ScanNumber),
	}
}

// parseRow decodes one row laid out according to index.
func parseRow(row []string, index map[string]int) (Record, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	var rec Record
	var err error
	if ts := get("timestamp"); ts != "" {
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Record{}, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
	}
	if rec.Location.X, err = strconv.ParseFloat(get("location_x"), 64); err != nil {
		return Record{}, fmt.Errorf("bad location_x: %w", err)
	}
	if rec.Location.Y, err = strconv.ParseFloat(get("location_y"), 64); err != nil {
		return Record{}, fmt.Errorf("bad location_y: %w", err)
	}
	rssi, err := strconv.ParseFloat(get("rssi_dbm"), 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad rssi_dbm: %w", err)
	}
	rec.RSSI = int(rssi)
	if q, err := strconv.ParseFloat(get("signal_quality"), 64); err == nil {
		rec.SignalQuality = int(q)
	} else {
		rec.SignalQuality = signal_quality.ToQuality(rssi)
	}
	rec.ScanNumber, _ = strconv.Atoi(get("scan_number"))

	rec.Location.Name = get("location_name")
	rec.SSID = orDefault(get("ssid"), "Unknown")
	rec.BSSID = orDefault(get("bssid"), unknownBSSID)
	rec.Frequency = orDefault(get("frequency"), signal_quality.NotAvailable)
	rec.Channel = orDefault(get("channel"), signal_quality.NotAvailable)
	rec.Security = orDefault(get("security"), signal_quality.UnknownSecurity)
	return rec, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
