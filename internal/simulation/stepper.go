package simulation

import "math"

// DefaultMaxBacklog is the number of steps a Stepper will catch up in one call.
const DefaultMaxBacklog = 5

// Stepper turns irregular wall-clock deltas into a whole number of fixed
// steps. Time that does not fill a step carries over to the next call. When
// the caller falls behind by more than MaxBacklog steps the excess is dropped
// rather than replayed.
type Stepper struct {
	Step       float64 // s
	MaxBacklog int

	acc     float64
	dropped int
}

// NewStepper returns a stepper with the given step length. A non-positive
// maxBacklog selects DefaultMaxBacklog.
func NewStepper(step float64, maxBacklog int) *Stepper {
	if maxBacklog <= 0 {
		maxBacklog = DefaultMaxBacklog
	}
	return &Stepper{Step: step, MaxBacklog: maxBacklog}
}

// Advance adds elapsed seconds and returns how many steps to run now.
func (s *Stepper) Advance(elapsed float64) int {
	if !(elapsed > 0) || !(s.Step > 0) || math.IsInf(elapsed, 0) {
		return 0
	}
	s.acc += elapsed
	n := int(math.Floor(s.acc / s.Step))
	s.acc -= float64(n) * s.Step
	if n > s.MaxBacklog {
		s.dropped += n - s.MaxBacklog
		n = s.MaxBacklog
	}
	return n
}

// Alpha is the fraction of a step accumulated but not yet run, for
// interpolating between the last two states.
func (s *Stepper) Alpha() float64 {
	if !(s.Step > 0) {
		return 0
	}
	return s.acc / s.Step
}

// Dropped is the total number of steps discarded by the backlog clamp.
func (s *Stepper) Dropped() int { return s.dropped }
