package wireless_scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// SSIDs may contain spaces, so the BSSID column anchors each row.
var airportRowRegex = regexp.MustCompile(`^\s*(.*?)\s+([0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5})\s+(-?\d+)\s+(\S+)\s+\S+\s+\S+\s+(.+?)\s*$`)

var airportChannelRegex = regexp.MustCompile(`^\d+`)

type airportBackend struct {
	run CommandRunner
}

func (b *airportBackend) Source() Source { return SourceAirport }

func (b *airportBackend) Scan(ctx context.Context) ([]signal_quality.Observation, error) {
	out, err := b.run(ctx, airportPath, "-s")
	if err != nil {
		return nil, err
	}
	return parseAirportOutput(out)
}

// parseAirportOutput parses `airport -s` rows:
// SSID BSSID RSSI CHANNEL HT CC SECURITY.
func parseAirportOutput(output []byte) ([]signal_quality.Observation, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var networks []signal_quality.Observation

	for scanner.Scan() {
		m := airportRowRegex.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		rec := rawRecord{
			SSID:     m[1],
			BSSID:    strings.ToLower(m[2]),
			Channel:  signal_quality.ParseChannel(airportChannelRegex.FindString(m[4])),
			Security: airportSecurity(m[5]),
		}
		if rec.SSID == "" {
			continue
		}
		if rssi, err := strconv.Atoi(m[3]); err == nil {
			rec.setDBM(rssi)
		}
		networks = append(networks, rec.observation())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read airport output: %w", err)
	}
	return networks, nil
}

func airportSecurity(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "NONE") {
		return "Open"
	}
	return s
}
