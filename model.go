package armsim

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// NumJoints is the number of revolute joints in the arm.
const NumJoints = 6

// Joints holds one angle per joint in degrees.
type Joints [NumJoints]float64

// JointSpec describes the range and speed of a single joint.
type JointSpec struct {
	Name              string  `json:"name"`
	MinAngleDeg       float64 `json:"min_angle_deg"`
	MaxAngleDeg       float64 `json:"max_angle_deg"`
	MaxSpeedDegPerSec float64 `json:"max_speed_deg_per_sec"`
}

// DHParams are the Denavit-Hartenberg parameters of one link. Lengths are in
// millimetres, angles in degrees.
type DHParams struct {
	LinkLength  float64 `json:"a"`
	LinkTwist   float64 `json:"alpha"`
	LinkOffset  float64 `json:"d"`
	AngleOffset float64 `json:"theta_offset"`
}

// Workspace is the axis-aligned box the tool point must stay inside.
type Workspace struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
	ZMin float64 `json:"z_min"`
	ZMax float64 `json:"z_max"`
}

// Box is a named axis-aligned region the tool point must stay out of.
type Box struct {
	Name string    `json:"name"`
	Min  r3.Vector `json:"min"`
	Max  r3.Vector `json:"max"`
}

// Contains reports whether p lies inside the box, boundary included.
func (b Box) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// RobotModel is the immutable description of the arm.
type RobotModel struct {
	Joints     [NumJoints]JointSpec
	DH         [NumJoints]DHParams
	Workspace  Workspace
	KeepOut    []Box
	HomeJoints Joints

	// ToolPitchDeg is the elevation of the tool axis in the arm plane that
	// the geometric solver holds the wrist at. -90 points straight down.
	ToolPitchDeg float64
}

// Joint ranges in degrees for the default arm.
var defaultJointLimits = [][2]float64{
	{-180, 180}, // Base
	{-135, 135}, // Shoulder
	{-150, 150}, // Elbow
	{-180, 180}, // Wrist roll
	{-135, 135}, // Wrist pitch
	{-360, 360}, // Tool roll
}

var defaultJointNames = []string{"base", "shoulder", "elbow", "wrist_roll", "wrist_pitch", "tool_roll"}

var defaultJointSpeeds = []float64{180, 180, 180, 360, 360, 360}

// Spherical-wrist chain: shoulder 150 mm above the base, 250 mm upper arm,
// 250 mm forearm, 80 mm flange. All-zero joints point the arm straight up.
var defaultDH = [NumJoints]DHParams{
	{LinkLength: 0, LinkTwist: 90, LinkOffset: 150, AngleOffset: 0},
	{LinkLength: 250, LinkTwist: 0, LinkOffset: 0, AngleOffset: 90},
	{LinkLength: 0, LinkTwist: 90, LinkOffset: 0, AngleOffset: 90},
	{LinkLength: 0, LinkTwist: -90, LinkOffset: 250, AngleOffset: 0},
	{LinkLength: 0, LinkTwist: 90, LinkOffset: 0, AngleOffset: 0},
	{LinkLength: 0, LinkTwist: 0, LinkOffset: 80, AngleOffset: 0},
}

var defaultWorkspace = Workspace{XMin: -500, XMax: 500, YMin: -500, YMax: 500, ZMin: 0, ZMax: 800}

// DefaultModel returns the model used when no configuration overrides it.
func DefaultModel() *RobotModel {
	m := &RobotModel{
		DH:           defaultDH,
		Workspace:    defaultWorkspace,
		ToolPitchDeg: -90,
	}
	for i := range m.Joints {
		m.Joints[i] = JointSpec{
			Name:              defaultJointNames[i],
			MinAngleDeg:       defaultJointLimits[i][0],
			MaxAngleDeg:       defaultJointLimits[i][1],
			MaxSpeedDegPerSec: defaultJointSpeeds[i],
		}
	}
	return m
}

// validate checks the model is internally consistent.
func (m *RobotModel) validate() error {
	for i, j := range m.Joints {
		if j.MinAngleDeg > j.MaxAngleDeg {
			return fmt.Errorf("joint %d: min angle %.2f is greater than max angle %.2f", i+1, j.MinAngleDeg, j.MaxAngleDeg)
		}
		if j.MaxSpeedDegPerSec <= 0 {
			return fmt.Errorf("joint %d: max speed must be positive, got %.2f", i+1, j.MaxSpeedDegPerSec)
		}
	}
	ws := m.Workspace
	if ws.XMin > ws.XMax || ws.YMin > ws.YMax || ws.ZMin > ws.ZMax {
		return fmt.Errorf("workspace bounds are inverted: %+v", ws)
	}
	for _, b := range m.KeepOut {
		if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
			return fmt.Errorf("keep-out zone %q has inverted bounds", b.Name)
		}
	}
	for i, a := range m.HomeJoints {
		if a < m.Joints[i].MinAngleDeg || a > m.Joints[i].MaxAngleDeg {
			return fmt.Errorf("home angle %.2f for joint %d is outside [%.2f, %.2f]",
				a, i+1, m.Joints[i].MinAngleDeg, m.Joints[i].MaxAngleDeg)
		}
	}
	return nil
}

// sphericalWrist reports whether the DH chain has the layout the closed-form
// solver is derived for: planar shoulder/elbow and a spherical wrist.
func (m *RobotModel) sphericalWrist() bool {
	dh := m.DH
	return dh[0].LinkLength == 0 && dh[0].LinkTwist == 90 &&
		dh[1].LinkTwist == 0 && dh[1].LinkOffset == 0 && dh[1].LinkLength > 0 &&
		dh[2].LinkLength == 0 && dh[2].LinkTwist == 90 && dh[2].LinkOffset == 0 &&
		dh[3].LinkLength == 0 && dh[3].LinkTwist == -90 && dh[3].LinkOffset > 0 &&
		dh[4].LinkLength == 0 && dh[4].LinkTwist == 90 && dh[4].LinkOffset == 0 &&
		dh[5].LinkLength == 0 && dh[5].LinkTwist == 0
}
