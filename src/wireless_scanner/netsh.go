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

var (
	netshSSIDRegex    = regexp.MustCompile(`^SSID \d+\s*:\s*(.*)$`)
	netshBSSIDRegex   = regexp.MustCompile(`^BSSID \d+\s*:\s*([0-9a-fA-F:]{17})`)
	netshSignalRegex  = regexp.MustCompile(`^Signal\s*:\s*(\d+)%`)
	netshAuthRegex    = regexp.MustCompile(`^Authentication\s*:\s*(.+)$`)
	netshChannelRegex = regexp.MustCompile(`^Channel\s*:\s*(\d+)`)
)

type netshBackend struct {
	run CommandRunner
}

func (b *netshBackend) Source() Source { return SourceNetsh }

func (b *netshBackend) Scan(ctx context.Context) ([]signal_quality.Observation, error) {
	out, err := b.run(ctx, "netsh", "wlan", "show", "networks", "mode=Bssid")
	if err != nil {
		return nil, err
	}
	return parseNetshOutput(out)
}

// parseNetshOutput parses `netsh wlan show networks mode=Bssid`. An "SSID n"
// line opens a record; lines seen before it are dropped. When a network lists
// several BSSIDs the last signal and channel win.
func parseNetshOutput(output []byte) ([]signal_quality.Observation, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var acc recordAccumulator

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := netshSSIDRegex.FindStringSubmatch(line); m != nil {
			rec := acc.begin()
			rec.SSID = strings.TrimSpace(m[1])
			continue
		}
		if acc.current == nil {
			continue
		}

		if m := netshBSSIDRegex.FindStringSubmatch(line); m != nil {
			if acc.current.BSSID == "" {
				acc.current.BSSID = strings.ToLower(m[1])
			}
		} else if m := netshSignalRegex.FindStringSubmatch(line); m != nil {
			q, _ := strconv.Atoi(m[1])
			acc.current.setQuality(q)
		} else if m := netshAuthRegex.FindStringSubmatch(line); m != nil {
			acc.current.Security = strings.TrimSpace(m[1])
		} else if m := netshChannelRegex.FindStringSubmatch(line); m != nil {
			acc.current.Channel = signal_quality.ParseChannel(m[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read netsh output: %w", err)
	}
	return acc.finish(), nil
}
