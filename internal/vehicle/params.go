package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/cxd309/vehicle-emulator/internal/curve"
	"github.com/cxd309/vehicle-emulator/internal/powertrain"
	"github.com/go-gl/mathgl/mgl64"
)

// Gravity is the standard gravitational acceleration, m/s².
const Gravity = 9.81

// DefaultMaxStep is the largest timestep a single Tick will integrate.
const DefaultMaxStep = 0.25

const (
	defaultTorqueSplit       = 0.5
	defaultRollingResistance = 0.015
)

// AxleSpec places an axle relative to the centre of mass.
type AxleSpec struct {
	Center mgl64.Vec3 `json:"center"` // m, body frame
	Width  float64    `json:"width"`  // track width, m
}

// Params is the JSON-serialisable vehicle configuration.
type Params struct {
	Name              string                `json:"name"`
	Mass              float64               `json:"mass"` // kg
	CenterOfMass      mgl64.Vec3            `json:"center_of_mass"`
	FrontAxle         AxleSpec              `json:"front_axle"`
	RearAxle          AxleSpec              `json:"rear_axle"`
	MaxSteeringAngle  float64               `json:"max_steering_angle"`     // degrees
	TorqueSplit       *float64              `json:"torque_split,omitempty"` // share to the rear right wheel
	Wheel             chassis.WheelSpec     `json:"wheel"`
	Engine            powertrain.EngineSpec `json:"engine"`
	Tire              curve.Table           `json:"tire,omitempty"`               // nil selects the stock curve
	RollingResistance *float64              `json:"rolling_resistance,omitempty"` // coefficient of m·g
	MaxStep           float64               `json:"max_step,omitempty"`           // s
}

// Float returns a pointer to v, for the optional Params fields where zero is
// a meaningful setting.
func Float(v float64) *float64 { return &v }

// Split is the rear right wheel's torque share, or the stock share when unset.
func (p Params) Split() float64 {
	if p.TorqueSplit == nil {
		return defaultTorqueSplit
	}
	return *p.TorqueSplit
}

// Rolling is the rolling resistance coefficient, or the stock one when unset.
func (p Params) Rolling() float64 {
	if p.RollingResistance == nil {
		return defaultRollingResistance
	}
	return *p.RollingResistance
}

// DefaultParams returns the stock rear-drive coupé.
func DefaultParams() Params {
	return Params{
		Name:              "brz",
		Mass:              1246,
		CenterOfMass:      mgl64.Vec3{0, 0.5, 0},
		FrontAxle:         AxleSpec{Center: mgl64.Vec3{1.2, 0, 0}, Width: 1.8},
		RearAxle:          AxleSpec{Center: mgl64.Vec3{-1.2, 0, 0}, Width: 1.8},
		MaxSteeringAngle:  40,
		TorqueSplit:       Float(defaultTorqueSplit),
		Wheel:             chassis.DefaultWheelSpec(),
		Engine:            powertrain.DefaultEngineSpec(),
		RollingResistance: Float(defaultRollingResistance),
		MaxStep:           DefaultMaxStep,
	}
}

// WithDefaults fills zero-valued fields from DefaultParams, field by field
// within the nested specs. Callers that decode partial JSON use it so omitted
// keys keep the stock values. TorqueSplit and RollingResistance are only
// filled when absent, so an explicit zero survives.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.Mass == 0 {
		p.Mass = d.Mass
	}
	if p.CenterOfMass == (mgl64.Vec3{}) {
		p.CenterOfMass = d.CenterOfMass
	}
	p.FrontAxle = p.FrontAxle.withDefaults(d.FrontAxle)
	p.RearAxle = p.RearAxle.withDefaults(d.RearAxle)
	if p.MaxSteeringAngle == 0 {
		p.MaxSteeringAngle = d.MaxSteeringAngle
	}
	if p.TorqueSplit == nil {
		p.TorqueSplit = d.TorqueSplit
	}
	p.Wheel = wheelDefaults(p.Wheel, d.Wheel)
	p.Engine = engineDefaults(p.Engine, d.Engine)
	if p.RollingResistance == nil {
		p.RollingResistance = d.RollingResistance
	}
	if p.MaxStep == 0 {
		p.MaxStep = d.MaxStep
	}
	return p
}

func (a AxleSpec) withDefaults(d AxleSpec) AxleSpec {
	if a.Center == (mgl64.Vec3{}) {
		a.Center = d.Center
	}
	if a.Width == 0 {
		a.Width = d.Width
	}
	return a
}

func wheelDefaults(w, d chassis.WheelSpec) chassis.WheelSpec {
	if w.Radius == 0 {
		w.Radius = d.Radius
	}
	if w.InnerRadius == 0 {
		w.InnerRadius = d.InnerRadius
	}
	if w.Mass == 0 {
		w.Mass = d.Mass
	}
	if w.MaxBrakingForce == 0 {
		w.MaxBrakingForce = d.MaxBrakingForce
	}
	return w
}

func engineDefaults(e, d powertrain.EngineSpec) powertrain.EngineSpec {
	if len(e.Profile) == 0 {
		e.Profile = d.Profile
	}
	if e.FinalDriveRatio == 0 {
		e.FinalDriveRatio = d.FinalDriveRatio
	}
	if len(e.GearRatios) == 0 {
		e.GearRatios = d.GearRatios
	}
	return e
}

// Validate checks the geometry and mass.
func (p Params) Validate() error {
	var errs []error
	if !(p.Mass > 0) || math.IsInf(p.Mass, 0) {
		errs = append(errs, fmt.Errorf("mass must be positive, got %g", p.Mass))
	}
	if p.Wheelbase() <= 0 {
		errs = append(errs, errors.New("front and rear axles must not coincide with the centre of mass"))
	}
	if p.FrontAxle.Width <= 0 || p.RearAxle.Width <= 0 {
		errs = append(errs, errors.New("axle widths must be positive"))
	}
	if p.Wheel.Radius <= 0 {
		errs = append(errs, fmt.Errorf("wheel radius must be positive, got %g", p.Wheel.Radius))
	}
	if p.MaxStep < 0 {
		errs = append(errs, fmt.Errorf("max step must not be negative, got %g", p.MaxStep))
	}
	if r := p.Rolling(); !(r >= 0) {
		errs = append(errs, fmt.Errorf("rolling resistance must not be negative, got %g", r))
	}
	if s := p.Split(); !(s >= 0 && s <= 1) {
		errs = append(errs, fmt.Errorf("torque split must be within [0,1], got %g", s))
	}
	return errors.Join(errs...)
}

// Wheelbase is the longitudinal distance between the axles.
func (p Params) Wheelbase() float64 {
	return math.Abs(p.FrontAxle.Center.X()) + math.Abs(p.RearAxle.Center.X())
}
