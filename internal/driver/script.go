package driver

import (
	"fmt"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
)

// Segment holds a set of channel values over [From, To). A zero To holds
// them until the end of the run. Later segments override earlier ones on
// the same channel.
type Segment struct {
	From   float64                   `json:"from"`         // s
	To     float64                   `json:"to,omitempty"` // s
	Inputs map[input.Channel]float64 `json:"inputs"`
}

func (s Segment) active(t float64) bool {
	return t >= s.From && (s.To == 0 || t < s.To)
}

// ScriptSpec is the JSON form of a script driver.
type ScriptSpec struct {
	Segments []Segment `json:"segments"`
}

// Script replays fixed input segments.
type Script struct {
	segments []Segment
}

// NewScript validates spec and returns a Script. Channel names are matched
// case-insensitively and stored in their canonical form.
func NewScript(spec ScriptSpec) (*Script, error) {
	segments := make([]Segment, len(spec.Segments))
	for i, seg := range spec.Segments {
		if seg.From < 0 {
			return nil, fmt.Errorf("segment %d: negative start %g", i, seg.From)
		}
		if seg.To != 0 && seg.To <= seg.From {
			return nil, fmt.Errorf("segment %d: end %g not after start %g", i, seg.To, seg.From)
		}
		inputs := make(map[input.Channel]float64, len(seg.Inputs))
		for c, v := range seg.Inputs {
			ch, err := input.ParseChannel(string(c))
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", i, err)
			}
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("segment %d: %s value %g outside [0,1]", i, ch, v)
			}
			if _, dup := inputs[ch]; dup {
				return nil, fmt.Errorf("segment %d: channel %s given more than once", i, ch)
			}
			inputs[ch] = v
		}
		seg.Inputs = inputs
		segments[i] = seg
	}
	return &Script{segments: segments}, nil
}

// Kind implements Driver.
func (*Script) Kind() Kind { return KindScript }

// Inputs implements Driver.
func (d *Script) Inputs(t float64, _ vehicle.State) input.Snapshot {
	snap := input.Snapshot{}
	for _, seg := range d.segments {
		if !seg.active(t) {
			continue
		}
		for c, v := range seg.Inputs {
			snap.Set(c, v)
		}
	}
	return snap
}
