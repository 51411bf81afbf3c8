package armsim

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

type RequestType int

const (
	RequestJointMove RequestType = iota
	RequestCartesianMove
	RequestGripper
	RequestHome
)

func (t RequestType) String() string {
	switch t {
	case RequestJointMove:
		return "joint_move"
	case RequestCartesianMove:
		return "cartesian_move"
	case RequestGripper:
		return "gripper"
	case RequestHome:
		return "home"
	default:
		return "unknown"
	}
}

// RequestStatus is the lifecycle of a request:
// Pending -> Validating -> (Rejected | Queued) -> Executing -> (Completed | Failed | Cancelled).
type RequestStatus int

const (
	StatusPending RequestStatus = iota
	StatusValidating
	StatusRejected
	StatusQueued
	StatusExecuting
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusValidating:
		return "validating"
	case StatusRejected:
		return "rejected"
	case StatusQueued:
		return "queued"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type CartesianMoveOptions struct {
	// Speed in mm/s. Zero uses the configured default.
	Speed float64
	// Acceleration in mm/s². Recorded on the request; playback is linear.
	Acceleration float64
	Elbow        ElbowConfig
}

type JointMoveOptions struct {
	// Speed in deg/s. Zero uses the configured default.
	Speed float64
}

type request struct {
	id     uuid.UUID
	kind   RequestType
	status RequestStatus

	joints       Joints
	target       r3.Vector
	speed        float64
	acceleration float64
	elbow        ElbowConfig

	gripperPct   float64
	gripperForce float64

	submitted time.Time

	resolve func(RobotState)
	reject  func(error)
}
