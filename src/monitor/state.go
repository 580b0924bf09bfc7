package monitor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Selection actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionToggle = "toggle"
	ActionSet    = "set"
)

var (
	// ErrAlreadyRunning is returned by Start while the loop is running.
	ErrAlreadyRunning = errors.New("monitoring already active")
	// ErrUnknownAction is returned by Select for unsupported actions.
	ErrUnknownAction = errors.New("unknown selection action")
)

// SubscriptionState tracks whether the loop runs and which SSIDs get detail events.
type SubscriptionState struct {
	mu       sync.RWMutex
	running  bool
	selected map[string]struct{}
}

// NewSubscriptionState returns a stopped state with an empty selection.
func NewSubscriptionState() *SubscriptionState {
	return &SubscriptionState{selected: make(map[string]struct{})}
}

// tryStart flips Stopped to Running. A non-empty focus replaces the selection.
func (s *SubscriptionState) tryStart(focus []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	if len(focus) > 0 {
		s.selected = make(map[string]struct{}, len(focus))
		for _, ssid := range focus {
			s.selected[ssid] = struct{}{}
		}
	}
	return true
}

// stop flips to Stopped and clears the selection. It reports whether the state was running.
func (s *SubscriptionState) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.running
	s.running = false
	s.selected = make(map[string]struct{})
	return wasRunning
}

// Apply mutates the selection and returns the resulting set.
func (s *SubscriptionState) Apply(ssid, action string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case ActionAdd:
		s.selected[ssid] = struct{}{}
	case ActionRemove:
		delete(s.selected, ssid)
	case ActionToggle:
		if _, ok := s.selected[ssid]; ok {
			delete(s.selected, ssid)
		} else {
			s.selected[ssid] = struct{}{}
		}
	case ActionSet, "":
		s.selected = make(map[string]struct{})
		if ssid != "" {
			s.selected[ssid] = struct{}{}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return s.sortedLocked(), nil
}

// IsRunning reports the run flag.
func (s *SubscriptionState) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Selected returns the selected SSIDs in sorted order.
func (s *SubscriptionState) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Snapshot returns the run flag and selection read under one lock.
func (s *SubscriptionState) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Running: s.running, SelectedNetworks: s.sortedLocked()}
}

func (s *SubscriptionState) sortedLocked() []string {
	out := make([]string, 0, len(s.selected))
	for ssid := range s.selected {
		out = append(out, ssid)
	}
	sort.Strings(out)
	return out
}
