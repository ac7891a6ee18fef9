package simulation

import (
	stdjson "encoding/json"

	"github.com/cxd309/vehicle-emulator/internal/config"
	"github.com/cxd309/vehicle-emulator/internal/driver"
	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/kinematics"
	"github.com/cxd309/vehicle-emulator/internal/roadnet"
	"github.com/cxd309/vehicle-emulator/internal/telemetry"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"go.uber.org/zap"
)

// SimulationMeta holds the identity and timing parameters for a run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	Name         string  `json:"name,omitempty"`
	RunTime      float64 `json:"run_time"`  // seconds
	TimeStep     float64 `json:"time_step"` // seconds
}

// SimulationInput is the JSON-serialisable scenario.
type SimulationInput struct {
	Meta SimulationMeta `json:"simulation_meta"`
	// Vehicle overrides the stock parameters; omitted keys keep their defaults.
	Vehicle     *vehicle.Params      `json:"vehicle,omitempty"`
	Integrator  stdjson.RawMessage   `json:"integrator,omitempty"`
	Driver      stdjson.RawMessage   `json:"driver,omitempty"`
	RoadNetwork *roadnet.NetworkData `json:"road_network,omitempty"`
}

// WithConfig fills what the scenario leaves unset from the simulation
// configuration: the timing when no time step is given, the integrator, and
// the vehicle's maximum step.
func (in SimulationInput) WithConfig(sc config.SimulationConfig) SimulationInput {
	if in.Meta.TimeStep == 0 {
		in.Meta.TimeStep = sc.TimeStep
		if in.Meta.RunTime == 0 {
			in.Meta.RunTime = sc.RunTime
		}
	}
	if len(in.Integrator) == 0 {
		if m, err := kinematics.ByName(sc.Integrator); err == nil {
			in.Integrator = kinematics.Encode(m)
		}
	}
	p := vehicle.Params{}
	if in.Vehicle != nil {
		p = *in.Vehicle
	}
	if p.MaxStep == 0 {
		p.MaxStep = sc.MaxStep
	}
	in.Vehicle = &p
	return in
}

// LogRow is the vehicle state at the end of one step, together with the
// inputs that were held during it.
type LogRow struct {
	Step      int              `json:"step"`
	Timestamp float64          `json:"timestamp"` // seconds
	Vehicle   telemetry.Record `json:"vehicle"`
	Inputs    input.Snapshot   `json:"inputs,omitempty"`
}

// SimulationLog is the complete output of a run.
type SimulationLog struct {
	Meta       SimulationMeta `json:"simulation_meta"`
	Output     []LogRow       `json:"output"`
	Distance   float64        `json:"distance"`             // m, ground plane
	Trajectory string         `json:"trajectory,omitempty"` // WKT
	Phase      driver.Phase   `json:"final_phase,omitempty"`
}

// Records returns the telemetry record of every row.
func (l SimulationLog) Records() []telemetry.Record {
	out := make([]telemetry.Record, len(l.Output))
	for i, row := range l.Output {
		out[i] = row.Vehicle
	}
	return out
}

// Option customises a Simulation at construction.
type Option func(*Simulation)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSink streams every row to sink in addition to the returned log.
func WithSink(sink telemetry.Sink) Option {
	return func(s *Simulation) {
		if sink != nil {
			s.sink = sink
		}
	}
}
