// Package input defines the normalized control channels read by the vehicle
// once per tick, and the controllers that produce them.
package input

import (
	"fmt"
	"math"
	"strings"
)

// Channel is a logical input channel.
type Channel string

const (
	Up    Channel = "up"    // throttle, 0..1
	Down  Channel = "down"  // brake, 0..1
	Left  Channel = "left"  // steering magnitude to the left, 0..1
	Right Channel = "right" // steering magnitude to the right, 0..1
)

// Channels lists every supported channel.
var Channels = []Channel{Up, Down, Left, Right}

// ParseChannel resolves a channel name case-insensitively.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Up, Down, Left, Right:
		return c, nil
	}
	return "", fmt.Errorf("unknown input channel %q", s)
}

// Input is a single channel reading.
type Input struct {
	Channel Channel `json:"channel"`
	Value   float64 `json:"value"`
}

// Snapshot is the set of inputs active for one tick. An absent channel means
// no input on that channel.
type Snapshot map[Channel]Input

// Set records a value on channel c.
func (s Snapshot) Set(c Channel, v float64) {
	s[c] = Input{Channel: c, Value: v}
}

// Has reports whether channel c is present.
func (s Snapshot) Has(c Channel) bool {
	_, ok := s[c]
	return ok
}

// Value returns the channel value, or 0 when absent.
func (s Snapshot) Value(c Channel) float64 {
	return s[c].Value
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Steering returns the signed steering command in [-1, 1]. Left is negative.
// When both directions are present they cancel.
func (s Snapshot) Steering() float64 {
	return Clamp(math.Abs(s.Value(Right))-math.Abs(s.Value(Left)), -1, 1)
}

// Clamp limits v to [lo, hi]. NaN is treated as zero.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	return math.Max(lo, math.Min(hi, v))
}
