// Package telemetry streams per-tick vehicle records to sinks: memory for
// export and trajectory analysis, InfluxDB line protocol for dashboards, and
// the storage package's database sink.
package telemetry

import (
	"context"
	"errors"
	"math"

	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/go-gl/mathgl/mgl64"
)

// Record is one tick of a run.
type Record struct {
	RunID        string     `json:"run_id"`
	Time         float64    `json:"time"` // s since the start of the run
	Position     mgl64.Vec3 `json:"position"`
	Velocity     mgl64.Vec3 `json:"velocity"`
	Orientation  mgl64.Quat `json:"orientation"`
	Heading      float64    `json:"heading"` // rad
	Speed        float64    `json:"speed"`   // m/s
	EngineRPM    float64    `json:"engine_rpm"`
	EngineTorque float64    `json:"engine_torque"`  // N·m at the wheels
	Steering     float64    `json:"steering_angle"` // degrees, positive right
	// CorneringRadius is nil when driving straight.
	CorneringRadius *float64                                 `json:"cornering_radius"`
	Phase           string                                   `json:"phase,omitempty"`
	Wheels          map[vehicle.WheelPosition]chassis.Forces `json:"wheels,omitempty"`
}

// Capture builds a record from the vehicle's current state.
func Capture(runID string, t float64, v *vehicle.Vehicle) Record {
	s := v.State()
	f := v.Frame()
	return Record{
		RunID:           runID,
		Time:            t,
		Position:        s.Position,
		Velocity:        s.Velocity,
		Orientation:     s.Orientation,
		Heading:         s.Heading(),
		Speed:           s.Speed(),
		EngineRPM:       v.EngineRPM(),
		EngineTorque:    v.EngineTorque(),
		Steering:        v.SteeringAngle(),
		CorneringRadius: FiniteOrNil(s.CorneringRadius),
		Wheels:          f.Wheels,
	}
}

// FiniteOrNil returns nil for infinite or NaN values, which JSON and SQL
// cannot carry.
func FiniteOrNil(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// Sink consumes records. Write is called once per tick from the goroutine
// running the simulation; Flush at the end of a run.
type Sink interface {
	Write(ctx context.Context, r Record) error
	Flush(ctx context.Context) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(context.Context, Record) error { return nil }
func (discard) Flush(context.Context) error         { return nil }

// Multi fans records out to every sink in order. A failing sink does not
// stop the others; the errors are joined.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
