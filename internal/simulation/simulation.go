// Package simulation runs a scenario end to end.
//
// A scenario fixes the vehicle, the velocity integrator, the driver and an
// optional road network. The run advances in fixed timesteps; at each step
// the driver chooses the inputs from the current time and vehicle state, the
// vehicle ticks once with them, and the resulting state is logged and
// streamed to the telemetry sink.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cxd309/vehicle-emulator/internal/driver"
	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/cxd309/vehicle-emulator/internal/kinematics"
	"github.com/cxd309/vehicle-emulator/internal/roadnet"
	"github.com/cxd309/vehicle-emulator/internal/telemetry"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Simulation is a single scenario run. It is not safe for concurrent use.
type Simulation struct {
	meta    SimulationMeta
	vehicle *vehicle.Vehicle
	driver  driver.Driver
	network *roadnet.Graph

	sink    telemetry.Sink
	logger  *zap.Logger
	metrics *instruments

	step int
}

// NewSimulation builds the vehicle, integrator, road network and driver from
// input, placing the vehicle where the driver asks for it.
func NewSimulation(in SimulationInput, opts ...Option) (*Simulation, error) {
	meta := in.Meta
	if !(meta.TimeStep > 0) {
		return nil, fmt.Errorf("time_step must be positive, got %g", meta.TimeStep)
	}
	if meta.RunTime < 0 || math.IsNaN(meta.RunTime) || math.IsInf(meta.RunTime, 0) {
		return nil, fmt.Errorf("run_time must be a finite non-negative number, got %g", meta.RunTime)
	}
	if meta.SimulationID == "" {
		meta.SimulationID = uuid.NewString()
	}

	params := vehicle.DefaultParams()
	if in.Vehicle != nil {
		params = in.Vehicle.WithDefaults()
	}

	integrator, err := kinematics.Decode(in.Integrator)
	if err != nil {
		return nil, fmt.Errorf("integrator: %w", err)
	}

	var network *roadnet.Graph
	if in.RoadNetwork != nil {
		network, err = roadnet.NewGraph(*in.RoadNetwork)
		if err != nil {
			return nil, fmt.Errorf("building road network: %w", err)
		}
	}

	v, err := vehicle.New(params, vehicle.WithIntegrator(integrator))
	if err != nil {
		return nil, fmt.Errorf("building vehicle: %w", err)
	}

	d, err := driver.Decode(in.Driver, driver.Env{Vehicle: params, Network: network})
	if err != nil {
		return nil, fmt.Errorf("building driver: %w", err)
	}
	if p, ok := d.(driver.Placer); ok {
		start, heading := p.Placement()
		v.Teleport(start.Vec3(params.CenterOfMass.Y()), heading)
	}

	s := &Simulation{
		meta:    meta,
		vehicle: v,
		driver:  d,
		network: network,
		sink:    telemetry.Discard,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics, err = newInstruments(meter())
		if err != nil {
			return nil, fmt.Errorf("creating instruments: %w", err)
		}
	}
	return s, nil
}

// Meta returns the run identity, with the generated ID filled in.
func (s *Simulation) Meta() SimulationMeta { return s.meta }

// Vehicle exposes the simulated vehicle.
func (s *Simulation) Vehicle() *vehicle.Vehicle { return s.vehicle }

// Driver exposes the scenario driver.
func (s *Simulation) Driver() driver.Driver { return s.driver }

// Steps is the number of steps that will be run.
func (s *Simulation) Steps() int {
	return int(math.Round(s.meta.RunTime / s.meta.TimeStep))
}

// Run executes the whole scenario. The first row is the initial state at
// t=0, followed by one row per step. Cancelling ctx stops the run between
// steps.
func (s *Simulation) Run(ctx context.Context) (SimulationLog, error) {
	n := s.Steps()
	log := SimulationLog{Meta: s.meta, Output: make([]LogRow, 0, n+1)}
	s.logger.Info("Simulation started",
		zap.String("simulationId", s.meta.SimulationID),
		zap.String("driver", string(s.driver.Kind())),
		zap.String("integrator", s.vehicle.Integrator().Name()),
		zap.Int("steps", n))

	initial := s.row(nil)
	if err := s.sink.Write(ctx, initial.Vehicle); err != nil {
		return SimulationLog{}, fmt.Errorf("writing telemetry: %w", err)
	}
	log.Output = append(log.Output, initial)
	for s.step < n {
		if err := ctx.Err(); err != nil {
			return SimulationLog{}, fmt.Errorf("at t=%.2f: %w", s.now(), err)
		}
		row, err := s.Step(ctx)
		if err != nil {
			return SimulationLog{}, fmt.Errorf("at t=%.2f: %w", s.now(), err)
		}
		log.Output = append(log.Output, row)
	}
	if err := s.sink.Flush(ctx); err != nil {
		return SimulationLog{}, fmt.Errorf("flushing telemetry: %w", err)
	}

	traj := telemetry.Trajectory(log.Records())
	log.Distance = traj.Length()
	if !traj.IsEmpty() {
		log.Trajectory = traj.AsText()
	}
	if p, ok := s.driver.(driver.Phaser); ok {
		log.Phase = p.Phase()
	}
	s.logger.Info("Simulation finished",
		zap.String("simulationId", s.meta.SimulationID),
		zap.Float64("distance", log.Distance),
		zap.Float64("speed", s.vehicle.Speed()))
	return log, nil
}

// Step advances the run by one timestep and returns the resulting row.
func (s *Simulation) Step(ctx context.Context) (LogRow, error) {
	dt := s.meta.TimeStep
	in := s.driver.Inputs(s.now(), s.vehicle.State())
	s.vehicle.Tick(dt, in)
	s.step++

	row := s.row(in)
	s.metrics.record(ctx, s.driver.Kind(), row.Vehicle.Speed)
	if err := s.sink.Write(ctx, row.Vehicle); err != nil {
		return LogRow{}, fmt.Errorf("writing telemetry: %w", err)
	}
	if v := s.vehicle.State().Velocity; math.IsNaN(v.Len()) {
		return LogRow{}, errors.New("vehicle state diverged")
	}
	return row, nil
}

// now is the simulation time at the start of the next step.
func (s *Simulation) now() float64 { return float64(s.step) * s.meta.TimeStep }

func (s *Simulation) row(in input.Snapshot) LogRow {
	t := s.now()
	rec := telemetry.Capture(s.meta.SimulationID, t, s.vehicle)
	if p, ok := s.driver.(driver.Phaser); ok {
		rec.Phase = string(p.Phase())
	}
	return LogRow{Step: s.step, Timestamp: t, Vehicle: rec, Inputs: in}
}

// RunJSON accepts a JSON-encoded SimulationInput, runs it, and returns the
// JSON-encoded SimulationLog.
func RunJSON(ctx context.Context, jsonInput string, opts ...Option) (string, error) {
	var in SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &in); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	sim, err := NewSimulation(in, opts...)
	if err != nil {
		return "", err
	}

	simLog, err := sim.Run(ctx)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
