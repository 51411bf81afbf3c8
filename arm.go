package armsim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/utils"
)

// EngineState is the scheduler state machine.
type EngineState int

const (
	// EngineIdle has nothing queued and nothing executing.
	EngineIdle EngineState = iota
	// EngineExecuting is running exactly one request.
	EngineExecuting
	// EngineDraining has finished a request and is about to take the next.
	EngineDraining
)

func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "idle"
	case EngineExecuting:
		return "executing"
	case EngineDraining:
		return "draining"
	default:
		return "unknown"
	}
}

type Option func(*Engine)

// WithClock replaces the real clock, typically with clock.NewMock() in tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine owns the robot state and the motion queue. Requests are validated
// on submission and executed one at a time, in order, by a single worker.
type Engine struct {
	name   string
	cfg    *Config
	logger logging.Logger
	model  *RobotModel
	solver *Solver
	limits *Limits
	frame  referenceframe.Model
	clock  clock.Clock

	// progressMu orders progress events against stops. Acquired before mu.
	progressMu sync.Mutex

	mu            sync.Mutex
	state         RobotState
	queue         requestQueue
	status        EngineState
	current       *request
	cancelCurrent context.CancelCauseFunc
	closed        bool

	cartesianSpeed float64
	jointSpeed     float64

	wake      chan struct{}
	workers   *utils.StoppableWorkers
	observers observers
}

// NewEngine validates cfg, places the arm at its home angles and starts the
// executor.
func NewEngine(cfg *Config, logger logging.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg = cfg.Clone()
	if _, _, err := cfg.Validate(""); err != nil {
		return nil, errors.Wrap(err, "invalid engine config")
	}
	if logger == nil {
		logger = cfg.Logger
	}
	if logger == nil {
		logger = logging.NewLogger("armsim")
	}

	model := cfg.Model()
	frame, err := model.Kinematics()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kinematic model")
	}
	e := &Engine{
		name:           cfg.Name,
		cfg:            cfg,
		logger:         logger,
		model:          model,
		solver:         NewSolver(model, cfg.IK),
		limits:         NewLimits(model),
		frame:          frame,
		clock:          clock.New(),
		queue:          requestQueue{maxDepth: cfg.MaxQueueDepth},
		cartesianSpeed: cfg.DefaultCartesianSpeed,
		jointSpeed:     cfg.DefaultJointSpeed,
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.state.setJoints(e.solver, model.HomeJoints)
	e.state.Gripper = gripperState(0, 0)

	e.workers = utils.NewBackgroundStoppableWorkers(e.run)

	logger.Infof("arm simulation %q started at (%.1f, %.1f, %.1f)",
		e.name, e.state.Position.X, e.state.Position.Y, e.state.Position.Z)
	return e, nil
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Solver() *Solver { return e.solver }

func (e *Engine) Limits() *Limits { return e.limits }

func (e *Engine) Model() *RobotModel { return e.model }

func (e *Engine) Config() *Config { return e.cfg }

// Kinematics returns the referenceframe model of the arm.
func (e *Engine) Kinematics(ctx context.Context) (referenceframe.Model, error) {
	return e.frame, nil
}

// State returns a snapshot of the robot state.
func (e *Engine) State() RobotState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) IsMoving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsMoving
}

func (e *Engine) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.len()
}

func (e *Engine) Status() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Subscribe registers obs for every event and returns a func that removes it.
func (e *Engine) Subscribe(obs Observer) func() {
	return e.observers.add(obs)
}

// SetMotionParams changes the speeds used when a request leaves speed zero.
// Non-positive values leave the current setting unchanged.
func (e *Engine) SetMotionParams(cartesianSpeed, jointSpeed float64) (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cartesianSpeed > 0 {
		e.cartesianSpeed = cartesianSpeed
	}
	if jointSpeed > 0 {
		e.jointSpeed = jointSpeed
	}
	return e.cartesianSpeed, e.jointSpeed
}

// SubmitCartesianMove queues a move of the tool point to target. A target
// outside the workspace is rejected with an *OutOfWorkspaceError and nothing
// is queued.
func (e *Engine) SubmitCartesianMove(target r3.Vector, opts CartesianMoveOptions) (*Future[RobotState], error) {
	req := e.newRequest(RequestCartesianMove)
	if err := checkSpeed(opts.Speed); err != nil {
		return nil, e.rejectRequest(req, err)
	}
	if opts.Acceleration < 0 || math.IsNaN(opts.Acceleration) {
		return nil, e.rejectRequest(req, errors.Wrapf(ErrInvalidRequest, "acceleration must not be negative, got %.1f", opts.Acceleration))
	}
	if report := e.limits.ValidatePosition(target); !report.Valid {
		return nil, e.rejectRequest(req, positionError(target, report))
	}

	req.target = target
	req.speed = opts.Speed
	req.acceleration = opts.Acceleration
	req.elbow = opts.Elbow
	if req.acceleration == 0 {
		req.acceleration = e.cfg.DefaultAcceleration
	}
	return e.submitMotion(req)
}

// SubmitJointMove queues a move to joints. Any joint outside its range is
// rejected with a *JointLimitError and nothing is queued.
func (e *Engine) SubmitJointMove(joints Joints, opts JointMoveOptions) (*Future[RobotState], error) {
	req := e.newRequest(RequestJointMove)
	if err := checkSpeed(opts.Speed); err != nil {
		return nil, e.rejectRequest(req, err)
	}
	if report := e.limits.ValidateJoints(joints); !report.Valid {
		return nil, e.rejectRequest(req, &JointLimitError{Violations: report.Violations})
	}

	req.joints = joints
	req.speed = opts.Speed
	return e.submitMotion(req)
}

// Home queues a joint move to the model's home angles. The state is marked
// homed when it completes.
func (e *Engine) Home() (*Future[RobotState], error) {
	req := e.newRequest(RequestHome)
	req.joints = e.model.HomeJoints
	return e.submitMotion(req)
}

// EmergencyStop drops every queued request, cancels the one executing and
// clears IsMoving. The executing request makes no further state changes.
func (e *Engine) EmergencyStop() {
	e.progressMu.Lock()
	e.mu.Lock()
	cancelled := e.cancelAllLocked(ErrEmergencyStop)
	e.state.IsMoving = false
	e.mu.Unlock()
	e.progressMu.Unlock()

	e.logger.Warnf("emergency stop: cancelled %d request(s)", len(cancelled))
	e.rejectCancelled(cancelled, ErrEmergencyStop)
	e.observers.emit(EmergencyStopEvent{Cancelled: len(cancelled)})
}

// Close cancels outstanding work and stops the executor.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancelled := e.cancelAllLocked(ErrEngineClosed)
	e.state.IsMoving = false
	e.mu.Unlock()

	e.rejectCancelled(cancelled, ErrEngineClosed)
	e.workers.Stop()
	e.logger.Infof("arm simulation %q closed", e.name)
	return nil
}

func checkSpeed(speed float64) error {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return errors.Wrapf(ErrInvalidRequest, "speed must be positive, got %v", speed)
	}
	return nil
}

func (e *Engine) newRequest(kind RequestType) *request {
	return &request{
		id:        uuid.New(),
		kind:      kind,
		status:    StatusValidating,
		submitted: e.clock.Now(),
	}
}

func (e *Engine) rejectRequest(req *request, err error) error {
	req.status = StatusRejected
	e.logger.Warnf("rejected %s request %s: %v", req.kind, req.id, err)
	e.observers.emit(RequestStatusEvent{RequestID: req.id, Type: req.kind, Status: StatusRejected})
	return err
}

func (e *Engine) submitMotion(req *request) (*Future[RobotState], error) {
	fut := newFuture[RobotState](req.id)
	req.resolve = fut.resolve
	req.reject = fut.reject
	if err := e.submit(req); err != nil {
		return nil, err
	}
	return fut, nil
}

func (e *Engine) submit(req *request) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.rejectRequest(req, ErrEngineClosed)
	}
	if err := e.queue.enqueue(req); err != nil {
		e.mu.Unlock()
		return e.rejectRequest(req, err)
	}
	req.status = StatusQueued
	depth := e.queue.len()
	e.mu.Unlock()

	e.logger.Debugf("queued %s request %s (depth %d)", req.kind, req.id, depth)
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// cancelAllLocked marks the executing request and everything queued as
// cancelled and returns them, executing request first. e.mu must be held.
func (e *Engine) cancelAllLocked(cause error) []*request {
	var out []*request
	if e.current != nil {
		e.current.status = StatusCancelled
		out = append(out, e.current)
		e.cancelCurrent(cause)
	}
	for _, r := range e.queue.drain() {
		r.status = StatusCancelled
		out = append(out, r)
	}
	return out
}

func (e *Engine) rejectCancelled(reqs []*request, cause error) {
	for _, r := range reqs {
		r.reject(cause)
		e.observers.emit(RequestStatusEvent{RequestID: r.id, Type: r.kind, Status: StatusCancelled})
	}
}

func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
		e.drainQueue(ctx)
	}
}

// drainQueue executes queued requests until the queue is empty. Each
// request is fully resolved before the next one is taken.
func (e *Engine) drainQueue(ctx context.Context) {
	for ctx.Err() == nil {
		e.mu.Lock()
		req, ok := e.queue.next()
		if !ok {
			e.status = EngineIdle
			e.mu.Unlock()
			return
		}
		runCtx, cancel := context.WithCancelCause(ctx)
		e.current = req
		e.cancelCurrent = cancel
		e.status = EngineExecuting
		req.status = StatusExecuting
		if req.kind != RequestGripper {
			e.state.IsMoving = true
		}
		e.mu.Unlock()

		e.logger.Debugf("executing %s request %s", req.kind, req.id)
		e.observers.emit(RequestStatusEvent{RequestID: req.id, Type: req.kind, Status: StatusExecuting})

		err := e.execute(runCtx, req)
		cancel(nil)
		e.finish(req, err)
	}
}

func (e *Engine) finish(req *request, err error) {
	e.mu.Lock()
	e.current = nil
	e.cancelCurrent = nil
	if e.queue.len() > 0 {
		e.status = EngineDraining
	} else {
		e.status = EngineIdle
	}
	if req.status == StatusCancelled {
		e.mu.Unlock()
		e.logger.Debugf("%s request %s cancelled", req.kind, req.id)
		return
	}
	e.state.IsMoving = false
	if err != nil {
		req.status = StatusFailed
		e.state.LastError = err
	} else {
		req.status = StatusCompleted
		if req.kind == RequestHome {
			e.state.IsHomed = true
		}
	}
	snapshot := e.state
	e.mu.Unlock()

	if err != nil {
		e.logger.Warnf("%s request %s failed: %v", req.kind, req.id, err)
		e.observers.emit(
			RequestStatusEvent{RequestID: req.id, Type: req.kind, Status: StatusFailed},
			ErrorEvent{RequestID: req.id, Err: err},
		)
		req.reject(err)
		return
	}

	e.logger.Debugf("%s request %s completed", req.kind, req.id)
	events := []Event{RequestStatusEvent{RequestID: req.id, Type: req.kind, Status: StatusCompleted}}
	if req.kind != RequestGripper {
		events = append(events, PositionChangedEvent{RequestID: req.id, State: snapshot})
	}
	if req.kind == RequestHome {
		events = append(events, HomedEvent{RequestID: req.id, State: snapshot})
	}
	e.observers.emit(events...)
	req.resolve(snapshot)
}

func (e *Engine) execute(ctx context.Context, req *request) error {
	switch req.kind {
	case RequestJointMove, RequestHome:
		return e.executeJointMove(ctx, req)
	case RequestCartesianMove:
		return e.executeCartesianMove(ctx, req)
	case RequestGripper:
		return e.executeGripper(ctx, req)
	default:
		return errors.Wrapf(ErrInvalidRequest, "unknown request type %d", req.kind)
	}
}

func (e *Engine) executeJointMove(ctx context.Context, req *request) error {
	start := e.State().Joints
	speed := req.speed
	if speed == 0 {
		speed = e.defaultJointSpeed()
	}
	var maxDelta float64
	for i := range start {
		maxDelta = math.Max(maxDelta, math.Abs(req.joints[i]-start[i]))
	}
	duration := e.moveDuration(maxDelta/speed, start, req.joints)
	return e.playback(ctx, req, start, req.joints, duration)
}

func (e *Engine) executeCartesianMove(ctx context.Context, req *request) error {
	start := e.State()
	if e.cfg.ValidatePath {
		if p, report, ok := e.limits.firstInvalidSample(start.Position, req.target, e.cfg.PathCheckSteps); !ok {
			return errors.Wrap(positionError(p, report), "path leaves the workspace")
		}
	}

	target, err := e.solver.Inverse(req.target, start.Joints, GeometricOptions{Elbow: req.elbow})
	if err != nil {
		return err
	}

	speed := req.speed
	if speed == 0 {
		speed = e.defaultCartesianSpeed()
	}
	dist := req.target.Sub(start.Position).Norm()
	duration := e.moveDuration(dist/speed, start.Joints, target)
	return e.playback(ctx, req, start.Joints, target, duration)
}

// moveDuration applies the minimum move time and stretches the move so no
// joint exceeds its maximum speed.
// maxMoveSeconds is the longest duration time.Duration can hold.
var maxMoveSeconds = float64(math.MaxInt64) / float64(time.Second)

func (e *Engine) moveDuration(seconds float64, start, target Joints) time.Duration {
	for i, spec := range e.model.Joints {
		seconds = math.Max(seconds, math.Abs(target[i]-start[i])/spec.MaxSpeedDegPerSec)
	}
	if seconds >= maxMoveSeconds {
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < e.cfg.MinMoveDuration {
		d = e.cfg.MinMoveDuration
	}
	return d
}

// playback interpolates linearly from start to target in joint space. Each
// step waits duration/steps, then updates the state and emits progress. The
// last step lands exactly on target.
func (e *Engine) playback(ctx context.Context, req *request, start, target Joints, duration time.Duration) error {
	steps := e.cfg.InterpolationSteps
	stepDelay := duration / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		if err := e.sleep(ctx, stepDelay); err != nil {
			return err
		}

		t := float64(i) / float64(steps)
		joints := target
		if i < steps {
			for k := range joints {
				joints[k] = start[k] + (target[k]-start[k])*t
			}
		}

		e.progressMu.Lock()
		e.mu.Lock()
		if ctx.Err() != nil {
			e.mu.Unlock()
			e.progressMu.Unlock()
			return context.Cause(ctx)
		}
		e.state.setJoints(e.solver, joints)
		pos, orient := e.state.Position, e.state.Orientation
		e.mu.Unlock()

		e.observers.emit(
			PositionUpdateEvent{RequestID: req.id, Position: pos, Orientation: orient, Progress: t},
			JointsUpdateEvent{RequestID: req.id, Joints: joints},
		)
		e.progressMu.Unlock()
	}
	return nil
}

// sleep waits d on the engine clock, returning early with the cancellation
// cause if ctx ends.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return nil
	}
	timer := e.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}

func (e *Engine) defaultCartesianSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cartesianSpeed
}

func (e *Engine) defaultJointSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jointSpeed
}
