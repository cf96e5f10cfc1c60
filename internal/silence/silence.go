// Package silence decides which decoded access units survive trimming.
//
// A chunk is dropped only when it is mostly silent and lies in the lead-in
// or trail-out region of the program. Silence inside the body is kept.
package silence

import (
	"fmt"
	"sort"
	"time"
)

// Classifier holds the guard windows for one program.
type Classifier struct {
	LeadGuard  time.Duration
	TrailGuard time.Duration
}

// Guard presets observed in production use.
var (
	PresetStandard  = Classifier{LeadGuard: 15 * time.Second, TrailGuard: 15 * time.Second}
	PresetBroadcast = Classifier{LeadGuard: 20 * time.Second, TrailGuard: 30 * time.Second}
)

const DefaultPreset = "standard"

var presets = map[string]Classifier{
	"standard":  PresetStandard,
	"broadcast": PresetBroadcast,
}

// Preset returns the named guard preset.
func Preset(name string) (Classifier, error) {
	c, ok := presets[name]
	if !ok {
		return Classifier{}, fmt.Errorf("unknown silence preset %q (known: %v)", name, PresetNames())
	}
	return c, nil
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMostlySilent reports whether at least half of pcm is exactly zero.
// An empty buffer is mostly silent.
func IsMostlySilent(pcm []int16) bool {
	zeros := 0
	for _, s := range pcm {
		if s == 0 {
			zeros++
		}
	}
	return zeros >= len(pcm)/2
}

// NormalizedPosition converts a 1-based access unit position into whole
// seconds of program time: position * containerTimescale / trackTimescale.
func NormalizedPosition(position, containerTimescale, trackTimescale uint32) time.Duration {
	if trackTimescale == 0 {
		return 0
	}
	secs := uint64(position) * uint64(containerTimescale) / uint64(trackTimescale)
	return time.Duration(secs) * time.Second
}

// InProtectedBody reports whether elapsed lies strictly between the lead
// guard and total minus the trail guard.
func (c Classifier) InProtectedBody(elapsed, total time.Duration) bool {
	return elapsed > c.LeadGuard && elapsed < total-c.TrailGuard
}

// ShouldKeep reports whether the chunk decoded at elapsed is kept.
func (c Classifier) ShouldKeep(pcm []int16, elapsed, total time.Duration) bool {
	return !IsMostlySilent(pcm) || c.InProtectedBody(elapsed, total)
}

func (c Classifier) String() string {
	return fmt.Sprintf("lead %s / trail %s", c.LeadGuard, c.TrailGuard)
}
