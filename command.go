package armsim

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
)

// DoCommand is a map based entry point for collaborators that cannot link
// against the typed API. Move commands block until the move resolves or ctx
// ends.
func (e *Engine) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "home":
		fut, err := e.Home()
		if err != nil {
			return nil, err
		}
		return waitState(ctx, fut)

	case "move_joints":
		raw, ok := cmd["joints"].([]interface{})
		if !ok || len(raw) != NumJoints {
			return nil, fmt.Errorf("move_joints command requires 'joints' with %d numbers", NumJoints)
		}
		var joints Joints
		for i, v := range raw {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("joint %d must be a number, got %T", i+1, v)
			}
			joints[i] = f
		}
		speed, _ := cmd["speed"].(float64)
		fut, err := e.SubmitJointMove(joints, JointMoveOptions{Speed: speed})
		if err != nil {
			return nil, err
		}
		return waitState(ctx, fut)

	case "move_cartesian":
		var target r3.Vector
		for _, axis := range []struct {
			key string
			dst *float64
		}{{"x", &target.X}, {"y", &target.Y}, {"z", &target.Z}} {
			v, ok := cmd[axis.key].(float64)
			if !ok {
				return nil, fmt.Errorf("move_cartesian command requires numeric '%s' parameter", axis.key)
			}
			*axis.dst = v
		}
		opts := CartesianMoveOptions{}
		opts.Speed, _ = cmd["speed"].(float64)
		opts.Acceleration, _ = cmd["acceleration"].(float64)
		if elbow, ok := cmd["elbow"].(string); ok {
			opts.Elbow = ParseElbow(elbow)
		}
		fut, err := e.SubmitCartesianMove(target, opts)
		if err != nil {
			return nil, err
		}
		return waitState(ctx, fut)

	case "set_gripper":
		pct, force, err := e.gripperArgs(cmd)
		if err != nil {
			return nil, err
		}
		fut, err := e.SetGripper(pct, force)
		if err != nil {
			return nil, err
		}
		g, err := fut.Wait(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"position_percentage": g.PositionPct,
			"is_open":             g.IsOpen,
			"force":               g.Force,
		}, nil

	case "emergency_stop":
		e.EmergencyStop()
		return map[string]interface{}{"success": true}, nil

	case "get_state":
		return stateMap(e.State()), nil

	case "queue_status":
		return map[string]interface{}{
			"length":    e.QueueLength(),
			"status":    e.Status().String(),
			"is_moving": e.IsMoving(),
		}, nil

	case "set_motion_params":
		speed, _ := cmd["speed"].(float64)
		jointSpeed, _ := cmd["joint_speed"].(float64)
		if speed < 0 || jointSpeed < 0 {
			return nil, fmt.Errorf("speeds must be positive, got speed=%.1f joint_speed=%.1f", speed, jointSpeed)
		}
		cart, joint := e.SetMotionParams(speed, jointSpeed)
		return map[string]interface{}{
			"speed":       cart,
			"joint_speed": joint,
		}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func waitState(ctx context.Context, fut *Future[RobotState]) (map[string]interface{}, error) {
	s, err := fut.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return stateMap(s), nil
}

func stateMap(s RobotState) map[string]interface{} {
	joints := make([]interface{}, len(s.Joints))
	for i, j := range s.Joints {
		joints[i] = j
	}
	out := map[string]interface{}{
		"joints":    joints,
		"x":         s.Position.X,
		"y":         s.Position.Y,
		"z":         s.Position.Z,
		"rx":        s.Orientation.RX,
		"ry":        s.Orientation.RY,
		"rz":        s.Orientation.RZ,
		"gripper":   s.Gripper.PositionPct,
		"is_open":   s.Gripper.IsOpen,
		"is_moving": s.IsMoving,
		"is_homed":  s.IsHomed,
	}
	if s.LastError != nil {
		out["last_error"] = s.LastError.Error()
	}
	return out
}
