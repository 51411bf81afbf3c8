package armsim

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
)

// Jaw envelope of the simulated gripper in mm.
var gripperSize = r3.Vector{X: 67.0455, Y: 53.027, Z: 106.4}

// SetGripper queues a gripper command. positionPct runs from 0 (fully open)
// to 100 (fully closed); force must be within [0, MaxGripperForce].
func (e *Engine) SetGripper(positionPct, force float64) (*Future[GripperState], error) {
	req := e.newRequest(RequestGripper)
	if !(positionPct >= 0 && positionPct <= 100) {
		return nil, e.rejectRequest(req, errors.Wrapf(ErrInvalidGripperPosition, "got %.1f", positionPct))
	}
	if !(force >= 0 && force <= e.cfg.MaxGripperForce) {
		return nil, e.rejectRequest(req, errors.Wrapf(ErrInvalidGripperForce,
			"force must be between 0 and %.1f, got %.1f", e.cfg.MaxGripperForce, force))
	}

	req.gripperPct = positionPct
	req.gripperForce = force
	fut := newFuture[GripperState](req.id)
	req.resolve = func(s RobotState) { fut.resolve(s.Gripper) }
	req.reject = fut.reject
	if err := e.submit(req); err != nil {
		return nil, err
	}
	return fut, nil
}

func (e *Engine) executeGripper(ctx context.Context, req *request) error {
	if err := e.sleep(ctx, e.cfg.GripperActuationTime); err != nil {
		return err
	}

	e.mu.Lock()
	if ctx.Err() != nil {
		e.mu.Unlock()
		return context.Cause(ctx)
	}
	e.state.Gripper = gripperState(req.gripperPct, req.gripperForce)
	g := e.state.Gripper
	e.mu.Unlock()

	e.logger.Debugf("gripper at %.1f%% (open=%v, force %.1f)", g.PositionPct, g.IsOpen, g.Force)
	e.observers.emit(GripperChangedEvent{RequestID: req.id, Gripper: g})
	return nil
}

// Geometries returns the gripper jaws as a box centred on the flange and
// aligned with the tool pose.
func (e *Engine) Geometries() ([]spatialmath.Geometry, error) {
	s := e.State()
	// The jaws narrow as the gripper closes.
	dims := gripperSize
	dims.X = math.Max(1, gripperSize.X*(1-s.Gripper.PositionPct/100))
	claws, err := spatialmath.NewBox(s.Pose(), dims, "claws")
	if err != nil {
		return nil, errors.Wrap(err, "failed to build gripper geometry")
	}
	return []spatialmath.Geometry{claws}, nil
}

// gripperArgs reads a set_gripper command. The position is given as
// "position" or "percentage"; force defaults to the current force.
func (e *Engine) gripperArgs(cmd map[string]interface{}) (float64, float64, error) {
	pct, ok := cmd["position"].(float64)
	if !ok {
		pct, ok = cmd["percentage"].(float64)
	}
	if !ok {
		return 0, 0, errors.New("set_gripper command requires 'position' or 'percentage' parameter")
	}
	force := e.State().Gripper.Force
	if f, ok := cmd["force"].(float64); ok {
		force = f
	}
	return pct, force, nil
}
