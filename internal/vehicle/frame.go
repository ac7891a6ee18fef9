package vehicle

import (
	"github.com/cxd309/vehicle-emulator/internal/chassis"
	"github.com/go-gl/mathgl/mgl64"
)

// WheelPosition names a wheel on the stock two-axle layout.
type WheelPosition string

const (
	FrontLeft  WheelPosition = "fl"
	FrontRight WheelPosition = "fr"
	RearLeft   WheelPosition = "rl"
	RearRight  WheelPosition = "rr"
)

// WheelPositions lists every wheel in a stable order.
var WheelPositions = []WheelPosition{FrontLeft, FrontRight, RearLeft, RearRight}

// Frame is the force breakdown of the last tick. It is a pure output for
// rendering and telemetry; nothing in it feeds back into the next tick.
type Frame struct {
	Wheels map[WheelPosition]chassis.Forces `json:"wheels"`

	NormalFront      float64    `json:"normal_front"`      // N
	NormalRear       float64    `json:"normal_rear"`       // N
	DrivingForce     float64    `json:"driving_force"`     // N, both rear wheels
	Longitudinal     float64    `json:"longitudinal"`      // N along Forward, before friction and brakes
	Lateral          float64    `json:"lateral"`           // N along Right
	CentripetalForce float64    `json:"centripetal_force"` // N, signed toward the turn
	RearLateral      float64    `json:"rear_lateral"`      // N, residual carried by the rear axle
	Friction         mgl64.Vec3 `json:"friction"`
	Braking          mgl64.Vec3 `json:"braking"`
	Net              mgl64.Vec3 `json:"net"`
}

// Observer receives the frame after every tick.
type Observer func(Frame)

// Pose is what a renderer needs to place the vehicle and its wheels.
type Pose struct {
	Position    mgl64.Vec3                   `json:"position"`
	Orientation mgl64.Quat                   `json:"orientation"`
	Basis       chassis.Basis                `json:"basis"`
	WheelYaw    map[WheelPosition]mgl64.Quat `json:"wheel_yaw"`
	WheelHubs   map[WheelPosition]mgl64.Vec3 `json:"wheel_hubs"`
}
