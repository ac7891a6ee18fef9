// Package powertrain models the engine torque curve and the wheel brakes.
package powertrain

import (
	"errors"
	"fmt"

	"github.com/cxd309/vehicle-emulator/internal/curve"
	"github.com/cxd309/vehicle-emulator/internal/input"
)

// DataPoint is one row of an engine torque/power profile.
type DataPoint struct {
	RPM    float64 `json:"rpm"`
	Torque float64 `json:"torque"` // N·m at the crank
	Power  float64 `json:"power"`  // kW
}

// Profile is an engine's torque/power curve, ordered by RPM.
type Profile []DataPoint

// BRZProfile is the stock profile used by the default vehicle.
func BRZProfile() Profile {
	return Profile{
		{RPM: 0, Torque: 0, Power: 0},
		{RPM: 1000, Torque: 140, Power: 20},
		{RPM: 2000, Torque: 160, Power: 40},
		{RPM: 3000, Torque: 200, Power: 70},
		{RPM: 4000, Torque: 180, Power: 70},
		{RPM: 5000, Torque: 200, Power: 210},
		{RPM: 6000, Torque: 200, Power: 260},
		{RPM: 7000, Torque: 200, Power: 300},
	}
}

// Stock drivetrain ratios for the default vehicle.
const BRZFinalDrive = 4.1

// BRZGearRatios returns the stock gearbox.
func BRZGearRatios() []float64 { return []float64{3.62, 2.18, 1.54, 1.21, 1.0, 0.76} }

// EngineSpec is the JSON-serialisable engine configuration.
type EngineSpec struct {
	Profile         Profile   `json:"profile"`
	FinalDriveRatio float64   `json:"final_drive_ratio"`
	GearRatios      []float64 `json:"gear_ratios"`
	Gear            int       `json:"gear"`
}

// DefaultEngineSpec returns the stock engine configuration.
func DefaultEngineSpec() EngineSpec {
	return EngineSpec{
		Profile:         BRZProfile(),
		FinalDriveRatio: BRZFinalDrive,
		GearRatios:      BRZGearRatios(),
	}
}

// Engine converts throttle position into wheel-referred torque. Engine speed
// tracks the pedal directly; there is no flywheel and no gear shifting.
type Engine struct {
	torque          curve.Table
	power           curve.Table
	maxRPM          float64
	FinalDriveRatio float64
	GearRatios      []float64
	CurrentGear     int

	RPM    float64
	Torque float64 // wheel-referred, N·m
}

// NewEngine validates spec and builds an engine at rest.
func NewEngine(spec EngineSpec) (*Engine, error) {
	if len(spec.Profile) == 0 {
		return nil, fmt.Errorf("engine profile: %w", curve.ErrEmptyTable)
	}
	if len(spec.GearRatios) == 0 {
		return nil, errors.New("engine: no gear ratios")
	}
	if spec.Gear < 0 || spec.Gear >= len(spec.GearRatios) {
		return nil, fmt.Errorf("engine: gear %d out of range [0,%d)", spec.Gear, len(spec.GearRatios))
	}
	if spec.FinalDriveRatio <= 0 {
		return nil, fmt.Errorf("engine: final drive ratio must be positive, got %g", spec.FinalDriveRatio)
	}

	torque := make(curve.Table, len(spec.Profile))
	power := make(curve.Table, len(spec.Profile))
	for i, dp := range spec.Profile {
		torque[i] = curve.Point{X: dp.RPM, Y: dp.Torque}
		power[i] = curve.Point{X: dp.RPM, Y: dp.Power}
	}
	if err := torque.Validate(); err != nil {
		return nil, fmt.Errorf("engine profile: %w", err)
	}

	gears := make([]float64, len(spec.GearRatios))
	copy(gears, spec.GearRatios)

	e := &Engine{
		torque:          torque,
		power:           power,
		maxRPM:          torque.Last().X,
		FinalDriveRatio: spec.FinalDriveRatio,
		GearRatios:      gears,
		CurrentGear:     spec.Gear,
	}
	e.SetRPM(spec.Profile[0].RPM)
	return e, nil
}

// MaxRPM is the highest RPM in the profile.
func (e *Engine) MaxRPM() float64 { return e.maxRPM }

// Ratio is the overall drivetrain multiplier for the current gear.
func (e *Engine) Ratio() float64 {
	return e.FinalDriveRatio * e.GearRatios[e.CurrentGear]
}

// Tick sets engine speed from the throttle channel, or coasts when absent.
func (e *Engine) Tick(_ float64, in input.Snapshot) {
	if in.Has(input.Up) {
		e.Accelerate(in.Value(input.Up))
		return
	}
	e.Coast()
}

// Accelerate sets RPM proportional to throttle in [0, 1].
func (e *Engine) Accelerate(throttle float64) {
	e.SetRPM(input.Clamp(throttle, 0, 1) * e.maxRPM)
}

// Coast drops the engine to zero RPM.
func (e *Engine) Coast() { e.SetRPM(0) }

// RevMatch sets RPM from the driven wheels' angular velocity (rad/s).
func (e *Engine) RevMatch(wheelAngularVelocity float64) {
	e.SetRPM(wheelAngularVelocity * e.FinalDriveRatio)
}

// SetRPM updates RPM and the resulting torque.
func (e *Engine) SetRPM(rpm float64) {
	e.RPM = rpm
	e.Torque = e.TorqueAt(rpm)
}

// TorqueAt returns wheel-referred torque at rpm. Speeds beyond the profile
// use the last sample.
func (e *Engine) TorqueAt(rpm float64) float64 {
	return e.torque.At(rpm) * e.Ratio()
}

// Power returns the crank power (kW) at the current RPM.
func (e *Engine) Power() float64 {
	return e.power.At(e.RPM)
}
