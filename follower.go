package armsim

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// FollowOptions controls how a leader's joints are replayed on a follower.
type FollowOptions struct {
	// Mirror negates the base and wrist roll joints.
	Mirror      bool
	ScaleFactor float64
	// Speed is the follower's joint speed in deg/s. Zero uses its default.
	Speed float64
}

// Follow replays every completed move of leader on follower. Transformed
// angles outside the follower's limits are clamped with a warning. The
// returned func stops following.
func Follow(leader, follower *Engine, opts FollowOptions, logger logging.Logger) (func(), error) {
	if leader == nil || follower == nil {
		return nil, errors.New("leader and follower must both be set")
	}
	if leader == follower {
		return nil, errors.New("an engine cannot follow itself")
	}
	if opts.ScaleFactor == 0 {
		opts.ScaleFactor = 1.0
	}
	if opts.ScaleFactor < 0 {
		return nil, errors.Errorf("scale factor must be positive, got %.2f", opts.ScaleFactor)
	}
	if logger == nil {
		logger = follower.logger
	}
	logger = logger.Sublogger("follower")

	unsubscribe := leader.Subscribe(ObserverFunc(func(ev Event) {
		changed, ok := ev.(PositionChangedEvent)
		if !ok {
			return
		}
		target := clampWithWarning(follower.model, transformJoints(changed.State.Joints, opts), logger)
		if _, err := follower.SubmitJointMove(target, JointMoveOptions{Speed: opts.Speed}); err != nil {
			logger.Debugf("Failed to sync to follower %q: %v", follower.name, err)
		}
	}))

	logger.Infof("%q following %q (mirror=%v, scale=%.2f)", follower.name, leader.name, opts.Mirror, opts.ScaleFactor)
	return unsubscribe, nil
}

// transformJoints applies scaling, then mirroring of the base and wrist roll.
func transformJoints(joints Joints, opts FollowOptions) Joints {
	for i := range joints {
		if opts.ScaleFactor != 1.0 {
			joints[i] *= opts.ScaleFactor
		}
		if opts.Mirror && (i == 0 || i == 3) {
			joints[i] = -joints[i]
		}
	}
	return joints
}

func clampWithWarning(m *RobotModel, joints Joints, logger logging.Logger) Joints {
	for i, angle := range joints {
		min, max := m.Joints[i].MinAngleDeg, m.Joints[i].MaxAngleDeg
		if angle < min {
			logger.Warnf("Joint %d angle %.3f° below limit %.3f°, clamping", i+1, angle, min)
			joints[i] = min
		} else if angle > max {
			logger.Warnf("Joint %d angle %.3f° above limit %.3f°, clamping", i+1, angle, max)
			joints[i] = max
		}
	}
	return joints
}
