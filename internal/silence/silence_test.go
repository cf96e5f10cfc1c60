package silence

import (
	"testing"
	"time"
)

func TestIsMostlySilent(t *testing.T) {
	tests := []struct {
		name string
		pcm  []int16
		want bool
	}{
		{"empty", nil, true},
		{"all zero", []int16{0, 0, 0, 0}, true},
		{"exactly half", []int16{0, 0, 5, -5}, true},
		{"odd length rounds down", []int16{0, 1, 2}, true},
		{"below half", []int16{0, 1, 2, 3}, false},
		{"loud", []int16{100, -100, 32767, -32768}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMostlySilent(tt.pcm); got != tt.want {
				t.Fatalf("IsMostlySilent(%v) = %v, want %v", tt.pcm, got, tt.want)
			}
		})
	}
}

func TestNormalizedPosition(t *testing.T) {
	tests := []struct {
		pos, movie, track uint32
		want              time.Duration
	}{
		{0, 1000, 44100, 0},
		{441, 1000, 44100, 10 * time.Second},
		{440, 1000, 44100, 9 * time.Second},
		{4_000_000_000, 1000, 44100, 90_702_947 * time.Second},
		{10, 1000, 0, 0},
	}
	for _, tt := range tests {
		if got := NormalizedPosition(tt.pos, tt.movie, tt.track); got != tt.want {
			t.Fatalf("NormalizedPosition(%d, %d, %d) = %v, want %v", tt.pos, tt.movie, tt.track, got, tt.want)
		}
	}
}

func TestInProtectedBody(t *testing.T) {
	c := PresetStandard
	total := 100 * time.Second
	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{0, false},
		{15 * time.Second, false},
		{16 * time.Second, true},
		{84 * time.Second, true},
		{85 * time.Second, false},
		{100 * time.Second, false},
	}
	for _, tt := range tests {
		if got := c.InProtectedBody(tt.elapsed, total); got != tt.want {
			t.Fatalf("InProtectedBody(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}

	// A program shorter than both guards has no body.
	if c.InProtectedBody(10*time.Second, 20*time.Second) {
		t.Fatalf("short program reported a protected body")
	}
}

func TestShouldKeep(t *testing.T) {
	c := PresetBroadcast
	total := 120 * time.Second
	silent := make([]int16, 1024)
	loud := []int16{1, 2, 3, 4}

	tests := []struct {
		name    string
		pcm     []int16
		elapsed time.Duration
		want    bool
	}{
		{"silent lead-in", silent, 5 * time.Second, false},
		{"silent body", silent, 60 * time.Second, true},
		{"silent trail-out", silent, 95 * time.Second, false},
		{"loud lead-in", loud, 5 * time.Second, true},
		{"loud trail-out", loud, 119 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ShouldKeep(tt.pcm, tt.elapsed, total); got != tt.want {
				t.Fatalf("ShouldKeep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreset(t *testing.T) {
	c, err := Preset("broadcast")
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if c.LeadGuard != 20*time.Second || c.TrailGuard != 30*time.Second {
		t.Fatalf("broadcast = %v", c)
	}
	if _, err := Preset("nope"); err == nil {
		t.Fatalf("unknown preset accepted")
	}
	names := PresetNames()
	if len(names) != 2 || names[0] != "broadcast" || names[1] != DefaultPreset {
		t.Fatalf("PresetNames() = %v", names)
	}
}
