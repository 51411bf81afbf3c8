package armsim

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commandResult struct {
	res map[string]interface{}
	err error
}

// runCommand calls DoCommand on another goroutine and drives the mock clock
// until it returns.
func runCommand(t *testing.T, e *Engine, mock *clock.Mock, cmd map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()
	ch := make(chan commandResult, 1)
	go func() {
		res, err := e.DoCommand(context.Background(), cmd)
		ch <- commandResult{res, err}
	}()
	var out commandResult
	advanceUntil(t, mock, func() bool {
		select {
		case out = <-ch:
			return true
		default:
			return false
		}
	})
	return out.res, out.err
}

func TestDoCommand(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	t.Run("move_joints", func(t *testing.T) {
		res, err := runCommand(t, e, mock, map[string]interface{}{
			"command": "move_joints",
			"joints":  []interface{}{10.0, -20.0, 30.0, 0.0, 0.0, 0.0},
			"speed":   90.0,
		})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{10.0, -20.0, 30.0, 0.0, 0.0, 0.0}, res["joints"])
		assert.Equal(t, false, res["is_moving"])
	})

	t.Run("move_cartesian", func(t *testing.T) {
		res, err := runCommand(t, e, mock, map[string]interface{}{
			"command": "move_cartesian",
			"x":       300.0,
			"y":       0.0,
			"z":       200.0,
			"speed":   400.0,
			"elbow":   "up",
		})
		require.NoError(t, err)
		assert.InDelta(t, 300, res["x"], 1e-3)
		assert.InDelta(t, 0, res["y"], 1e-3)
		assert.InDelta(t, 200, res["z"], 1e-3)
	})

	t.Run("move_cartesian outside the workspace", func(t *testing.T) {
		_, err := e.DoCommand(context.Background(), map[string]interface{}{
			"command": "move_cartesian", "x": 1000.0, "y": 0.0, "z": 300.0,
		})
		assert.True(t, errors.Is(err, ErrOutOfWorkspace))
	})

	t.Run("set_gripper", func(t *testing.T) {
		res, err := runCommand(t, e, mock, map[string]interface{}{
			"command":  "set_gripper",
			"position": 100.0,
			"force":    30.0,
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, res["position_percentage"])
		assert.Equal(t, false, res["is_open"])
		assert.Equal(t, 30.0, res["force"])
	})

	t.Run("home", func(t *testing.T) {
		res, err := runCommand(t, e, mock, map[string]interface{}{"command": "home"})
		require.NoError(t, err)
		assert.Equal(t, true, res["is_homed"])
	})

	t.Run("get_state", func(t *testing.T) {
		res, err := e.DoCommand(context.Background(), map[string]interface{}{"command": "get_state"})
		require.NoError(t, err)
		for _, key := range []string{"joints", "x", "y", "z", "rx", "ry", "rz", "gripper", "is_open", "is_moving", "is_homed"} {
			assert.Contains(t, res, key)
		}
		assert.NotContains(t, res, "last_error")
		assert.Equal(t, 100.0, res["gripper"])
	})

	t.Run("queue_status", func(t *testing.T) {
		res, err := e.DoCommand(context.Background(), map[string]interface{}{"command": "queue_status"})
		require.NoError(t, err)
		assert.Equal(t, 0, res["length"])
		assert.Equal(t, "idle", res["status"])
		assert.Equal(t, false, res["is_moving"])
	})

	t.Run("set_motion_params", func(t *testing.T) {
		res, err := e.DoCommand(context.Background(), map[string]interface{}{
			"command": "set_motion_params", "speed": 250.0,
		})
		require.NoError(t, err)
		assert.Equal(t, 250.0, res["speed"])
		assert.Equal(t, 30.0, res["joint_speed"])

		_, err = e.DoCommand(context.Background(), map[string]interface{}{
			"command": "set_motion_params", "joint_speed": -5.0,
		})
		assert.Error(t, err)
	})

	t.Run("emergency_stop", func(t *testing.T) {
		res, err := e.DoCommand(context.Background(), map[string]interface{}{"command": "emergency_stop"})
		require.NoError(t, err)
		assert.Equal(t, true, res["success"])
	})

	t.Run("malformed arguments", func(t *testing.T) {
		for _, cmd := range []map[string]interface{}{
			{"command": "move_joints", "joints": []interface{}{1.0, 2.0}},
			{"command": "move_joints", "joints": []interface{}{1.0, 2.0, 3.0, 4.0, 5.0, "six"}},
			{"command": "move_cartesian", "x": 1.0, "y": 2.0},
			{"command": "set_gripper"},
		} {
			_, err := e.DoCommand(context.Background(), cmd)
			assert.Error(t, err, "%v", cmd)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := e.DoCommand(context.Background(), map[string]interface{}{"command": "dance"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown command: dance")
	})
}

func TestDoCommandReportsLastError(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	_, err := runCommand(t, e, mock, map[string]interface{}{
		"command": "move_cartesian", "x": 0.0, "y": 0.0, "z": 790.0,
	})
	assert.True(t, errors.Is(err, ErrNotConverged))

	res, err := e.DoCommand(context.Background(), map[string]interface{}{"command": "get_state"})
	require.NoError(t, err)
	assert.Contains(t, res, "last_error")
}
