package wireless_scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

var nmcliArgs = []string{"-t", "-f", "SSID,BSSID,SIGNAL,CHAN,SECURITY", "dev", "wifi", "list"}

type nmcliBackend struct {
	run CommandRunner
}

func (b *nmcliBackend) Source() Source { return SourceNmcli }

func (b *nmcliBackend) Scan(ctx context.Context) ([]signal_quality.Observation, error) {
	out, err := b.run(ctx, "nmcli", nmcliArgs...)
	if err != nil {
		return nil, err
	}
	return parseNmcliOutput(out)
}

// parseNmcliOutput parses terse nmcli output. Fields are separated by ':'
// and literal colons inside values are escaped as "\:".
func parseNmcliOutput(output []byte) ([]signal_quality.Observation, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var networks []signal_quality.Observation

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := splitTerse(line)
		if len(fields) < 5 {
			logger.WithField("line", line).Debug("Skipping nmcli line with too few fields")
			continue
		}

		rec := rawRecord{
			SSID:    fields[0],
			BSSID:   strings.ToLower(fields[1]),
			Channel: signal_quality.ParseChannel(fields[3]),
		}
		if rec.SSID == "" {
			// hidden network, no name to attribute the reading to
			continue
		}
		if q, err := strconv.Atoi(strings.TrimSpace(fields[2])); err == nil {
			rec.setQuality(q)
		} else {
			logger.WithFields(logrus.Fields{
				"ssid":   rec.SSID,
				"signal": fields[2],
			}).Debug("Unparseable nmcli signal, using default quality")
		}
		rec.Security = nmcliSecurity(strings.Join(fields[4:], ":"))
		networks = append(networks, rec.observation())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nmcli output: %w", err)
	}
	return networks, nil
}

// nmcli prints no security for open networks.
func nmcliSecurity(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return "Open"
	}
	return s
}

// splitTerse splits one line of nmcli terse output on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var b strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(fields, b.String())
}
