package input

import "sync"

// Key is a held control key.
type Key = Channel

// Ramp rates, per second.
const (
	ThrottleRate = 1.0
	BrakeRate    = 1.0
	SteeringRate = 2.0
)

// KeyboardRamp turns held keys into smoothly ramping channel values.
// Throttle and brake climb while held and drop to zero on release; steering
// integrates toward the held side and stays where it is when no steering key
// is held. It is safe for concurrent use.
type KeyboardRamp struct {
	mu       sync.Mutex
	held     map[Key]bool
	throttle float64
	brake    float64
	steering float64 // -1 (left) .. 1 (right)
	snap     Snapshot
}

// NewKeyboardRamp returns a ramp with nothing held.
func NewKeyboardRamp() *KeyboardRamp {
	return &KeyboardRamp{held: make(map[Key]bool), snap: Snapshot{}}
}

// Press marks key k as held.
func (k *KeyboardRamp) Press(key Key) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.held[key] = true
}

// Release marks key k as released.
func (k *KeyboardRamp) Release(key Key) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}

// Held reports whether key k is currently held.
func (k *KeyboardRamp) Held(key Key) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.held[key]
}

// Advance ramps every value by dt seconds and returns the resulting snapshot.
func (k *KeyboardRamp) Advance(dt float64) Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.held[Up] {
		k.throttle += dt * ThrottleRate
	} else {
		k.throttle = 0
	}
	k.throttle = Clamp(k.throttle, 0, 1)

	if k.held[Down] {
		k.brake += dt * BrakeRate
	} else {
		k.brake = 0
	}
	k.brake = Clamp(k.brake, 0, 1)

	// both steering keys at once cancel each other until pressed again
	if k.held[Left] && k.held[Right] {
		delete(k.held, Left)
		delete(k.held, Right)
	}
	switch {
	case k.held[Left]:
		k.steering -= dt * SteeringRate
	case k.held[Right]:
		k.steering += dt * SteeringRate
	}
	k.steering = Clamp(k.steering, -1, 1)

	snap := Snapshot{}
	snap.Set(Up, k.throttle)
	snap.Set(Down, k.brake)
	if k.steering < 0 {
		snap.Set(Left, -k.steering)
	} else {
		snap.Set(Right, k.steering)
	}
	k.snap = snap
	return snap.Clone()
}

// Current returns the snapshot produced by the last Advance.
func (k *KeyboardRamp) Current() Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.snap.Clone()
}

// StickDeadZone is the gamepad axis magnitude below which input is ignored.
const StickDeadZone = 0.1

// FromAxes maps gamepad stick axes to a snapshot. horizontal is negative to
// the left; vertical is negative forward (throttle) and positive backward
// (brake), matching browser gamepad conventions.
func FromAxes(horizontal, vertical float64) Snapshot {
	snap := Snapshot{}
	switch {
	case horizontal-StickDeadZone > 0:
		snap.Set(Right, Clamp(horizontal, 0, 1))
	case horizontal+StickDeadZone < 0:
		snap.Set(Left, Clamp(-horizontal, 0, 1))
	}
	switch {
	case vertical-StickDeadZone > 0:
		snap.Set(Down, Clamp(vertical, 0, 1))
	case vertical+StickDeadZone < 0:
		snap.Set(Up, Clamp(-vertical, 0, 1))
	}
	return snap
}
