package wireless_scanner

import (
	"github.com/wifi-signal-analyzer/signal-analyzer-go/src/signal_quality"
)

// defaultQuality is assumed when a platform reports neither strength nor quality.
const defaultQuality = 50

// rawRecord holds the fields a parser has seen for one network so far.
type rawRecord struct {
	SSID     string
	BSSID    string
	DBM      int
	HasDBM   bool
	Quality  int
	HasQual  bool
	Channel  signal_quality.Channel
	Security string
}

func (r *rawRecord) setDBM(dbm int) {
	r.DBM = dbm
	r.HasDBM = true
}

func (r *rawRecord) setQuality(q int) {
	r.Quality = q
	r.HasQual = true
}

// observation fills defaults and derives quality from strength.
func (r rawRecord) observation() signal_quality.Observation {
	switch {
	case r.HasDBM:
		return signal_quality.NewObservation(r.SSID, r.BSSID, r.DBM, r.Channel, r.Security)
	case r.HasQual:
		return signal_quality.NewObservationFromQuality(r.SSID, r.BSSID, r.Quality, r.Channel, r.Security)
	default:
		return signal_quality.NewObservationFromQuality(r.SSID, r.BSSID, defaultQuality, r.Channel, r.Security)
	}
}

// recordAccumulator is the awaiting-name / accumulating-fields state machine
// shared by the multi-line parsers. A record is emitted only when its SSID is known.
type recordAccumulator struct {
	current *rawRecord
	out     []signal_quality.Observation
}

// begin flushes the record in progress and starts a new one.
func (a *recordAccumulator) begin() *rawRecord {
	a.flush()
	a.current = &rawRecord{}
	return a.current
}

// discard drops the record in progress without emitting it.
func (a *recordAccumulator) discard() {
	a.current = nil
}

func (a *recordAccumulator) flush() {
	if a.current != nil && a.current.SSID != "" {
		a.out = append(a.out, a.current.observation())
	}
	a.current = nil
}

func (a *recordAccumulator) finish() []signal_quality.Observation {
	a.flush()
	return a.out
}

// collapseBySSID keeps one entry per SSID: the first position, the last values.
func collapseBySSID(networks []signal_quality.Observation) []signal_quality.Observation {
	index := make(map[string]int, len(networks))
	out := make([]signal_quality.Observation, 0, len(networks))
	for _, obs := range networks {
		if i, ok := index[obs.SSID]; ok {
			out[i] = obs
			continue
		}
		index[obs.SSID] = len(out)
		out = append(out, obs)
	}
	return out
}
