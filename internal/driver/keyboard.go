package driver

import (
	"fmt"
	"sort"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
)

// KeyEvent is a key press or release at simulation time T.
type KeyEvent struct {
	T    float64   `json:"t"` // s
	Key  input.Key `json:"key"`
	Down bool      `json:"down"`
}

// KeyboardSpec is the JSON form of a keyboard replay driver.
type KeyboardSpec struct {
	Events []KeyEvent `json:"events"`
}

// Keyboard replays recorded key events through an input.KeyboardRamp, so
// values ramp exactly as they would under a person at the keyboard.
type Keyboard struct {
	events []KeyEvent
	next   int
	ramp   *input.KeyboardRamp
	last   float64
	primed bool
}

// NewKeyboard validates spec and returns a Keyboard driver.
func NewKeyboard(spec KeyboardSpec) (*Keyboard, error) {
	events := make([]KeyEvent, len(spec.Events))
	for i, ev := range spec.Events {
		k, err := input.ParseChannel(string(ev.Key))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		ev.Key = k
		events[i] = ev
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].T < events[j].T })
	return &Keyboard{events: events, ramp: input.NewKeyboardRamp()}, nil
}

// Kind implements Driver.
func (*Keyboard) Kind() Kind { return KindKeyboard }

// Inputs implements Driver. Calls must come with non-decreasing t.
func (d *Keyboard) Inputs(t float64, _ vehicle.State) input.Snapshot {
	for d.next < len(d.events) && d.events[d.next].T <= t {
		ev := d.events[d.next]
		if ev.Down {
			d.ramp.Press(ev.Key)
		} else {
			d.ramp.Release(ev.Key)
		}
		d.next++
	}
	dt := 0.0
	if d.primed {
		dt = max(0, t-d.last)
	}
	d.last, d.primed = t, true
	return d.ramp.Advance(dt)
}
