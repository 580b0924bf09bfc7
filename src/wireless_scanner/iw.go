package wireless_scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// ErrNoInterfaces is returned when no wireless interface can be found to scan on.
var ErrNoInterfaces = errors.New("no wireless interfaces found")

var (
	bssidRegex     = regexp.MustCompile(`^BSS ([0-9a-fA-F:]{17})\(on`)
	dsChannelRegex = regexp.MustCompile(`DS Parameter set: channel (\d+)`)
	primaryRegex   = regexp.MustCompile(`primary channel: (\d+)`)
)

type iwBackend struct {
	run       CommandRunner
	iface     string
	uciRoot   string
	discover  func() ([]string, error)
	uciLookup func(root string) ([]string, error)
}

func (b *iwBackend) Source() Source { return SourceIw }

// interfaces resolves the interfaces to scan: the configured one, the
// station interfaces declared in UCI, then whatever netlink reports.
func (b *iwBackend) interfaces() ([]string, error) {
	if b.iface != "" {
		return []string{b.iface}, nil
	}
	if b.uciRoot != "" && b.uciLookup != nil {
		names, err := b.uciLookup(b.uciRoot)
		if err != nil {
			logger.WithError(err).Warn("Failed to read STA interfaces from UCI, falling back to netlink")
		} else if len(names) > 0 {
			return names, nil
		}
	}
	if b.discover == nil {
		return nil, ErrNoInterfaces
	}
	names, err := b.discover()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoInterfaces
	}
	return names, nil
}

func (b *iwBackend) Scan(ctx context.Context) ([]signal_quality.Observation, error) {
	interfaces, err := b.interfaces()
	if err != nil {
		return nil, err
	}

	var allNetworks []signal_quality.Observation
	var lastErr error
	scanned := 0
	for _, iface := range interfaces {
		logger.WithField("interface", iface).Debug("Scanning on interface")
		out, err := b.run(ctx, "iw", "dev", iface, "scan")
		if err != nil {
			// A busy interface is not fatal for the whole scan.
			logger.WithFields(logrus.Fields{
				"interface": iface,
				"error":     err,
			}).Warn("Failed to scan on a specific interface, continuing with others")
			lastErr = err
			continue
		}

		networks, err := parseIwScanOutput(out)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"interface": iface,
				"error":     err,
			}).Warn("Failed to parse scan output for an interface")
			lastErr = err
			continue
		}
		scanned++
		allNetworks = append(allNetworks, networks...)
	}

	if scanned == 0 && lastErr != nil {
		return nil, lastErr
	}
	return allNetworks, nil
}

// iwSecurity tracks the security hints seen inside one BSS block.
type iwSecurity struct {
	capability bool
	privacy    bool
	rsn        bool
	wpa        bool
}

func (s iwSecurity) label() string {
	switch {
	case s.rsn && s.wpa:
		return "WPA/WPA2"
	case s.rsn:
		return "WPA2"
	case s.wpa:
		return "WPA"
	case s.privacy:
		return "WEP"
	case s.capability:
		return "Open"
	default:
		return signal_quality.UnknownSecurity
	}
}

// parseIwScanOutput parses `iw dev <iface> scan`. Each "BSS" header opens a
// record; the record is emitted only if an SSID line was seen in its block.
func parseIwScanOutput(output []byte) ([]signal_quality.Observation, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var acc recordAccumulator
	var sec iwSecurity
	var freqChannel signal_quality.Channel
	channelFromIE := false

	closeBlock := func() {
		if acc.current == nil {
			return
		}
		acc.current.Security = sec.label()
		if !channelFromIE {
			acc.current.Channel = freqChannel
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "BSS ") {
			closeBlock()
			sec = iwSecurity{}
			freqChannel = signal_quality.Channel{}
			channelFromIE = false

			matches := bssidRegex.FindStringSubmatch(line)
			if len(matches) > 1 {
				acc.begin().BSSID = strings.ToLower(matches[1])
			} else {
				logger.WithField("line", line).Warn("Could not extract BSSID from line")
				acc.flush()
			}
			continue
		}
		if acc.current == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "\tSSID:"):
			acc.current.SSID = strings.TrimSpace(strings.TrimPrefix(line, "\tSSID:"))
		case strings.HasPrefix(trimmed, "signal:"):
			signalStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "signal:"))
			signalStr = strings.TrimSuffix(signalStr, " dBm")
			signal, err := strconv.ParseFloat(signalStr, 64)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"signal_str": signalStr,
					"error":      err,
				}).Warn("Failed to parse signal strength")
			} else {
				acc.current.setDBM(int(math.Round(signal)))
			}
		case strings.HasPrefix(trimmed, "freq:"):
			freq, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(trimmed, "freq:")), 64)
			if err == nil {
				freqChannel = channelFromFrequency(int(freq))
			}
		case strings.HasPrefix(trimmed, "capability:"):
			sec.capability = true
			sec.privacy = strings.Contains(trimmed, "Privacy")
		case strings.HasPrefix(line, "\tRSN:"):
			sec.rsn = true
		case strings.HasPrefix(line, "\tWPA:"):
			sec.wpa = true
		default:
			if m := dsChannelRegex.FindStringSubmatch(trimmed); len(m) > 1 {
				acc.current.Channel = signal_quality.ParseChannel(m[1])
				channelFromIE = true
			} else if m := primaryRegex.FindStringSubmatch(trimmed); len(m) > 1 && !channelFromIE {
				acc.current.Channel = signal_quality.ParseChannel(m[1])
				channelFromIE = true
			}
		}
	}
	closeBlock()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read iw output: %w", err)
	}
	return acc.finish(), nil
}

// channelFromFrequency maps a 2.4 GHz or 5 GHz centre frequency in MHz to its channel.
func channelFromFrequency(mhz int) signal_quality.Channel {
	switch {
	case mhz == 2484:
		return signal_quality.ChannelNumber(14)
	case mhz >= 2412 && mhz <= 2472:
		return signal_quality.ChannelNumber((mhz - 2407) / 5)
	case mhz >= 5160 && mhz <= 5885:
		return signal_quality.ChannelNumber((mhz - 5000) / 5)
	default:
		return signal_quality.Channel{}
	}
}
