package storage

import (
	"database/sql"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/cxd309/vehicle-emulator/internal/telemetry"
	"github.com/cxd309/vehicle-emulator/internal/vehicle"
	"github.com/go-gl/mathgl/mgl64"
	json "github.com/json-iterator/go"
	"gorm.io/datatypes"
)

// Models lists every table owned by this package.
var Models = []interface{}{
	&Run{},
	&Sample{},
}

// Run is one simulation execution.
type Run struct {
	ID         string         `json:"id" gorm:"primaryKey;size:64"`
	Name       string         `json:"name" gorm:"size:255"`
	Driver     string         `json:"driver" gorm:"size:32"`
	TimeStep   float64        `json:"timeStep"`
	RunTime    float64        `json:"runTime"`
	Integrator string         `json:"integrator" gorm:"size:32"`
	Params     datatypes.JSON `json:"params"`
	Steps      int            `json:"steps"`
	Distance   float64        `json:"distance"` // m, ground plane
	CreatedAt  time.Time      `json:"createdAt"`
	FinishedAt sql.NullTime   `json:"finishedAt" gorm:"default:NULL"`
}

// Sample is one tick of a run.
type Sample struct {
	ID    uint    `json:"id" gorm:"primaryKey"`
	RunID string  `json:"runId" gorm:"size:64;index:idx_sample_run_id"`
	Time  float64 `json:"time" gorm:"index:idx_sample_time"`

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
	QW float64 `json:"qw"`
	QX float64 `json:"qx"`
	QY float64 `json:"qy"`
	QZ float64 `json:"qz"`

	Heading         float64         `json:"heading"`
	Speed           float64         `json:"speed"`
	EngineRPM       float64         `json:"engineRpm"`
	EngineTorque    float64         `json:"engineTorque"`
	SteeringAngle   float64         `json:"steeringAngle"`
	CorneringRadius sql.NullFloat64 `json:"corneringRadius" gorm:"default:NULL"`
	Phase           string          `json:"phase" gorm:"size:32"`
	Wheels          datatypes.JSON  `json:"wheels"`
}

func sampleFromRecord(r telemetry.Record) (Sample, error) {
	s := Sample{
		RunID:         r.RunID,
		Time:          r.Time,
		X:             r.Position.X(),
		Y:             r.Position.Y(),
		Z:             r.Position.Z(),
		VX:            r.Velocity.X(),
		VY:            r.Velocity.Y(),
		VZ:            r.Velocity.Z(),
		QW:            r.Orientation.W,
		QX:            r.Orientation.X(),
		QY:            r.Orientation.Y(),
		QZ:            r.Orientation.Z(),
		Heading:       r.Heading,
		Speed:         r.Speed,
		EngineRPM:     r.EngineRPM,
		EngineTorque:  r.EngineTorque,
		SteeringAngle: r.Steering,
		Phase:         r.Phase,
		Wheels:        datatypes.JSON("{}"),
	}
	if r.CorneringRadius != nil {
		s.CorneringRadius = sql.NullFloat64{Float64: *r.CorneringRadius, Valid: true}
	}
	if len(r.Wheels) > 0 {
		data, err := json.Marshal(r.Wheels)
		if err != nil {
			return Sample{}, err
		}
		s.Wheels = datatypes.JSON(data)
	}
	return s, nil
}

// Record converts the row back into a telemetry record.
func (s Sample) Record() (telemetry.Record, error) {
	r := telemetry.Record{
		RunID:        s.RunID,
		Time:         s.Time,
		Position:     mgl64.Vec3{s.X, s.Y, s.Z},
		Velocity:     mgl64.Vec3{s.VX, s.VY, s.VZ},
		Orientation:  mgl64.Quat{W: s.QW, V: mgl64.Vec3{s.QX, s.QY, s.QZ}},
		Heading:      s.Heading,
		Speed:        s.Speed,
		EngineRPM:    s.EngineRPM,
		EngineTorque: s.EngineTorque,
		Steering:     s.SteeringAngle,
		Phase:        s.Phase,
	}
	if s.CorneringRadius.Valid {
		radius := s.CorneringRadius.Float64
		r.CorneringRadius = &radius
	}
	if len(s.Wheels) > 0 && string(s.Wheels) != "{}" {
		var wheels map[vehicle.WheelPosition]chassis.Forces
		if err := json.Unmarshal(s.Wheels, &wheels); err != nil {
			return telemetry.Record{}, err
		}
		r.Wheels = wheels
	}
	return r, nil
}
