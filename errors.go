package armsim

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

var (
	ErrOutOfWorkspace         = errors.New("target position is outside the workspace")
	ErrJointLimitExceeded     = errors.New("joint target exceeds joint limits")
	ErrUnreachable            = errors.New("target position is unreachable")
	ErrNotConverged           = errors.New("inverse kinematics did not converge")
	ErrInvalidGripperPosition = errors.New("gripper position must be between 0 and 100 percent")
	ErrInvalidGripperForce    = errors.New("gripper force is out of range")
	ErrInvalidRequest         = errors.New("invalid motion request")
	ErrQueueFull              = errors.New("motion queue is full")
	ErrEmergencyStop          = errors.New("motion cancelled by emergency stop")
	ErrEngineClosed           = errors.New("engine is closed")
)

// OutOfWorkspaceError reports which axes of a target fell outside the
// workspace box, or which keep-out zone contains it.
type OutOfWorkspaceError struct {
	Position     r3.Vector
	ViolatedAxes []Axis
	Zone         string
}

func (e *OutOfWorkspaceError) Error() string {
	if e.Zone != "" {
		return fmt.Sprintf("%v: (%.1f, %.1f, %.1f) is inside keep-out zone %q",
			ErrOutOfWorkspace, e.Position.X, e.Position.Y, e.Position.Z, e.Zone)
	}
	axes := make([]string, 0, len(e.ViolatedAxes))
	for _, a := range e.ViolatedAxes {
		axes = append(axes, a.String())
	}
	return fmt.Sprintf("%v: (%.1f, %.1f, %.1f) violates axes [%s]",
		ErrOutOfWorkspace, e.Position.X, e.Position.Y, e.Position.Z, strings.Join(axes, ", "))
}

func (e *OutOfWorkspaceError) Unwrap() error { return ErrOutOfWorkspace }

// JointLimitError lists every joint outside its configured range.
type JointLimitError struct {
	Violations []JointViolation
}

func (e *JointLimitError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("joint %d at %.3f° (limit %.3f°)", v.Index+1, v.Angle, v.Limit))
	}
	return fmt.Sprintf("%v: %s", ErrJointLimitExceeded, strings.Join(parts, "; "))
}

func (e *JointLimitError) Unwrap() error { return ErrJointLimitExceeded }

type UnreachableError struct {
	Target r3.Vector
	Reason string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%v: (%.1f, %.1f, %.1f): %s", ErrUnreachable, e.Target.X, e.Target.Y, e.Target.Z, e.Reason)
}

func (e *UnreachableError) Unwrap() error { return ErrUnreachable }

// NotConvergedError carries the best-effort solution of an exhausted
// numeric solve so callers can decide whether it is good enough.
type NotConvergedError struct {
	BestEffort Joints
	Residual   float64
	Iterations int
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("%v after %d iterations (residual %.4f mm)", ErrNotConverged, e.Iterations, e.Residual)
}

func (e *NotConvergedError) Unwrap() error { return ErrNotConverged }
