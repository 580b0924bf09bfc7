package signal_quality

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// UnknownSecurity is reported when the platform does not expose a security label.
	UnknownSecurity = "Unknown"
	// NotAvailable is the display value for a missing channel.
	NotAvailable = "N/A"
	// UnknownBand is the display value for a channel outside the known bands.
	UnknownBand = "Unknown"
)

// Channel is a Wi-Fi channel number, or the unknown sentinel when the
// platform did not report one. It marshals to a JSON number or "N/A".
type Channel struct {
	Number int
	Known  bool
}

// ChannelNumber returns a known channel.
func ChannelNumber(n int) Channel {
	return Channel{Number: n, Known: true}
}

// ParseChannel accepts a decimal channel number; anything else is unknown.
func ParseChannel(s string) Channel {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return Channel{}
	}
	return ChannelNumber(n)
}

func (c Channel) String() string {
	if !c.Known {
		return NotAvailable
	}
	return strconv.Itoa(c.Number)
}

// MarshalJSON implements json.Marshaler.
func (c Channel) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(c.Number)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Channel) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n > 0 {
			*c = ChannelNumber(n)
		} else {
			*c = Channel{}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("channel must be a number or string: %w", err)
	}
	*c = ParseChannel(s)
	return nil
}

// FrequencyBand derives the display band for a channel.
func FrequencyBand(c Channel) string {
	if !c.Known {
		return NotAvailable
	}
	switch {
	case c.Number >= 1 && c.Number <= 14:
		return fmt.Sprintf("2.4 GHz (Ch %d)", c.Number)
	case c.Number >= 36 && c.Number <= 165:
		return fmt.Sprintf("5 GHz (Ch %d)", c.Number)
	default:
		return UnknownBand
	}
}

// Observation is one access point seen by one scan.
//
// SignalQuality and Frequency are derived from SignalStrength and Channel.
// Build values with NewObservation; decoding from JSON recomputes them.
type Observation struct {
	SSID           string  `json:"ssid"`
	BSSID          string  `json:"bssid,omitempty"`
	SignalStrength int     `json:"signal_strength"`
	SignalQuality  int     `json:"signal_quality"`
	Channel        Channel `json:"channel"`
	Frequency      string  `json:"frequency"`
	Security       string  `json:"security"`
}

// NewObservation builds an observation with derived fields filled in.
func NewObservation(ssid, bssid string, dbm int, channel Channel, security string) Observation {
	if strings.TrimSpace(security) == "" {
		security = UnknownSecurity
	}
	return Observation{
		SSID:           ssid,
		BSSID:          bssid,
		SignalStrength: dbm,
		SignalQuality:  ToQuality(float64(dbm)),
		Channel:        channel,
		Frequency:      FrequencyBand(channel),
		Security:       security,
	}
}

// NewObservationFromQuality is used by platforms that only report a quality
// percentage. The strength is approximated and the quality recomputed from it.
func NewObservationFromQuality(ssid, bssid string, quality int, channel Channel, security string) Observation {
	return NewObservation(ssid, bssid, ToApproxDBM(quality), channel, security)
}

// Status returns the label for the observation's quality.
func (o Observation) Status() string {
	return StatusLabel(o.SignalQuality)
}

// UnmarshalJSON implements json.Unmarshaler and re-derives quality and band.
func (o *Observation) UnmarshalJSON(data []byte) error {
	type wire Observation
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = NewObservation(w.SSID, w.BSSID, w.SignalStrength, w.Channel, w.Security)
	return nil
}
