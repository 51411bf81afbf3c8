package armsim

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

type GripperState struct {
	// PositionPct is 0 when fully open and 100 when fully closed.
	PositionPct float64 `json:"position_pct"`
	IsOpen      bool    `json:"is_open"`
	Force       float64 `json:"force"`
}

// RobotState is a snapshot of the simulated arm. Position and Orientation are
// always the forward kinematics of Joints.
type RobotState struct {
	Joints      Joints       `json:"joints"`
	Position    r3.Vector    `json:"position"`
	Orientation Orientation  `json:"orientation"`
	Gripper     GripperState `json:"gripper"`
	IsMoving    bool         `json:"is_moving"`
	IsHomed     bool         `json:"is_homed"`
	LastError   error        `json:"-"`
}

// Pose returns the flange pose as a spatialmath pose.
func (s RobotState) Pose() spatialmath.Pose {
	return spatialmath.NewPose(s.Position, &spatialmath.EulerAngles{
		Roll:  degToRad(s.Orientation.RX),
		Pitch: degToRad(s.Orientation.RY),
		Yaw:   degToRad(s.Orientation.RZ),
	})
}

// setJoints moves the state to joints and re-derives the pose.
func (s *RobotState) setJoints(solver *Solver, joints Joints) {
	fk := solver.Forward(joints)
	s.Joints = joints
	s.Position = fk.Position
	s.Orientation = fk.Orientation
}

func gripperState(positionPct, force float64) GripperState {
	return GripperState{PositionPct: positionPct, IsOpen: positionPct < 50, Force: force}
}
