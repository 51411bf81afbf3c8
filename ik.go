package armsim

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// IKConfig tunes the inverse kinematics solvers. Zero values take the
// defaults listed next to each field.
type IKConfig struct {
	MaxIterations   int     `json:"max_iterations,omitempty"`      // 100
	Tolerance       float64 `json:"tolerance_mm,omitempty"`        // 0.001
	Epsilon         float64 `json:"epsilon_rad,omitempty"`         // 0.001
	StepSize        float64 `json:"step_size,omitempty"`           // 0.1
	Damping         float64 `json:"damping,omitempty"`             // 0.01
	CosineSlack     float64 `json:"cosine_slack,omitempty"`        // 1e-6
	VerifyTolerance float64 `json:"verify_tolerance_mm,omitempty"` // 0.001

	DisableNumericFallback bool `json:"disable_numeric_fallback,omitempty"`
}

func (c *IKConfig) setDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 0.001
	}
	if c.Epsilon <= 0 {
		c.Epsilon = 0.001
	}
	if c.StepSize <= 0 {
		c.StepSize = 0.1
	}
	if c.Damping <= 0 {
		c.Damping = 0.01
	}
	if c.CosineSlack <= 0 {
		c.CosineSlack = 1e-6
	}
	if c.VerifyTolerance <= 0 {
		c.VerifyTolerance = 0.001
	}
}

// ElbowConfig selects one of the two closed-form arm solutions.
type ElbowConfig int

const (
	// ElbowUp keeps the elbow above the shoulder to wrist line. Joint 3 bends
	// negative.
	ElbowUp ElbowConfig = iota
	// ElbowDown keeps the elbow below that line. Joint 3 bends positive.
	ElbowDown
)

func (e ElbowConfig) String() string {
	if e == ElbowDown {
		return "down"
	}
	return "up"
}

// ParseElbow accepts "up" or "down"; anything else is ElbowUp.
func ParseElbow(s string) ElbowConfig {
	if s == "down" {
		return ElbowDown
	}
	return ElbowUp
}

type GeometricOptions struct {
	Elbow       ElbowConfig
	ToolRollDeg float64
}

// InverseGeometric solves the closed-form position problem with the wrist
// held at the model's tool pitch. Solutions outside the joint limits are
// rejected, never clamped.
func (s *Solver) InverseGeometric(target r3.Vector, opts GeometricOptions) (Joints, error) {
	m := s.model
	var sol Joints
	if !m.sphericalWrist() {
		return sol, &UnreachableError{Target: target, Reason: "model has no closed-form solution"}
	}

	shoulderZ := m.DH[0].LinkOffset
	upper := m.DH[1].LinkLength
	fore := m.DH[3].LinkOffset
	flange := m.DH[5].LinkOffset

	base := math.Atan2(target.Y, target.X)
	radial := r3.Vector{X: math.Cos(base), Y: math.Sin(base)}
	pitch := degToRad(m.ToolPitchDeg)
	toolDir := radial.Mul(math.Cos(pitch)).Add(r3.Vector{Z: math.Sin(pitch)})
	wrist := target.Sub(toolDir.Mul(flange))

	r := wrist.X*radial.X + wrist.Y*radial.Y
	h := wrist.Z - shoulderZ
	dist := math.Hypot(r, h)
	if dist < 1e-9 {
		return sol, &UnreachableError{Target: target, Reason: "wrist centre coincides with the shoulder"}
	}

	cosElbow, ok := s.clampCosine((upper*upper + fore*fore - dist*dist) / (2 * upper * fore))
	if !ok {
		return sol, &UnreachableError{Target: target, Reason: "wrist centre is beyond the reach of the arm"}
	}
	cosShoulder, ok := s.clampCosine((upper*upper + dist*dist - fore*fore) / (2 * upper * dist))
	if !ok {
		return sol, &UnreachableError{Target: target, Reason: "wrist centre is beyond the reach of the arm"}
	}

	// interior is the angle between the links at the elbow; bend is how far
	// the forearm turns away from the upper arm's line.
	interior := math.Acos(cosElbow)
	shoulderOffset := math.Acos(cosShoulder)
	var upperElev, bend float64
	if opts.Elbow == ElbowDown {
		upperElev = math.Atan2(h, r) - shoulderOffset
		bend = math.Pi - interior
	} else {
		upperElev = math.Atan2(h, r) + shoulderOffset
		bend = -(math.Pi - interior)
	}

	sol[0] = wrapDeg(radToDeg(base) - m.DH[0].AngleOffset)
	sol[1] = wrapDeg(radToDeg(upperElev) - m.DH[1].AngleOffset)
	sol[2] = wrapDeg(radToDeg(bend) + 90 - m.DH[2].AngleOffset)
	sol[3] = wrapDeg(-m.DH[3].AngleOffset)
	sol[4] = wrapDeg(radToDeg(pitch-upperElev-bend) - m.DH[4].AngleOffset)
	sol[5] = opts.ToolRollDeg - m.DH[5].AngleOffset

	if violations := m.jointViolations(sol); len(violations) > 0 {
		return sol, &UnreachableError{
			Target: target,
			Reason: (&JointLimitError{Violations: violations}).Error(),
		}
	}

	if got := s.Forward(sol).Position; got.Sub(target).Norm() > s.cfg.VerifyTolerance {
		return sol, &UnreachableError{
			Target: target,
			Reason: errors.Errorf("solution lands %.4f mm from target", got.Sub(target).Norm()).Error(),
		}
	}
	return sol, nil
}

// clampCosine accepts values within CosineSlack of [-1, 1] as rounding noise.
func (s *Solver) clampCosine(c float64) (float64, bool) {
	switch {
	case c > 1:
		return 1, c-1 <= s.cfg.CosineSlack
	case c < -1:
		return -1, -1-c <= s.cfg.CosineSlack
	case math.IsNaN(c):
		return 0, false
	}
	return c, true
}

// InverseNumeric runs damped Newton-Raphson on the position error starting at
// seed. Joints are clamped into range after every update. When the iteration
// budget runs out the best joints found are returned with a
// *NotConvergedError.
func (s *Solver) InverseNumeric(target r3.Vector, seed Joints) (Joints, error) {
	joints := s.model.clampJoints(seed)
	best := joints
	bestErr := math.Inf(1)

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		diff := target.Sub(s.Forward(joints).Position)
		residual := diff.Norm()
		if residual < bestErr {
			best, bestErr = joints, residual
		}
		if residual <= s.cfg.Tolerance {
			return joints, nil
		}

		delta, err := s.solveStep(joints, diff)
		if err != nil {
			return best, errors.Wrap(&NotConvergedError{BestEffort: best, Residual: bestErr, Iterations: iter}, err.Error())
		}
		for i := range joints {
			joints[i] += radToDeg(delta.AtVec(i)) * s.cfg.StepSize
		}
		joints = s.model.clampJoints(joints)
	}

	residual := target.Sub(s.Forward(joints).Position).Norm()
	if residual < bestErr {
		best, bestErr = joints, residual
	}
	if bestErr <= s.cfg.Tolerance {
		return best, nil
	}
	return best, &NotConvergedError{BestEffort: best, Residual: bestErr, Iterations: s.cfg.MaxIterations}
}

// solveStep solves (JᵀJ + λ²I)Δ = Jᵀe by LU with partial pivoting.
func (s *Solver) solveStep(joints Joints, diff r3.Vector) (*mat.VecDense, error) {
	jac := s.jacobian(joints)
	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	lambda2 := s.cfg.Damping * s.cfg.Damping
	for i := 0; i < NumJoints; i++ {
		jtj.Set(i, i, jtj.At(i, i)+lambda2)
	}

	e := mat.NewVecDense(3, []float64{diff.X, diff.Y, diff.Z})
	var rhs mat.VecDense
	rhs.MulVec(jac.T(), e)

	var lu mat.LU
	lu.Factorize(&jtj)
	var delta mat.VecDense
	if err := lu.SolveVecTo(&delta, false, &rhs); err != nil {
		return nil, errors.Wrap(err, "normal equations are singular")
	}
	return &delta, nil
}

// jacobian is the 3xN positional Jacobian in mm per radian, by central
// differences.
func (s *Solver) jacobian(joints Joints) *mat.Dense {
	jac := mat.NewDense(3, NumJoints, nil)
	h := radToDeg(s.cfg.Epsilon)
	for i := 0; i < NumJoints; i++ {
		plus, minus := joints, joints
		plus[i] += h
		minus[i] -= h
		d := s.Forward(plus).Position.Sub(s.Forward(minus).Position).Mul(1 / (2 * s.cfg.Epsilon))
		jac.Set(0, i, d.X)
		jac.Set(1, i, d.Y)
		jac.Set(2, i, d.Z)
	}
	return jac
}

// Inverse tries the closed-form solver and falls back to the numeric one,
// seeded with seed, when the target has no closed-form solution.
func (s *Solver) Inverse(target r3.Vector, seed Joints, opts GeometricOptions) (Joints, error) {
	sol, err := s.InverseGeometric(target, opts)
	if err == nil {
		return sol, nil
	}
	if s.cfg.DisableNumericFallback || !errors.Is(err, ErrUnreachable) {
		return sol, err
	}
	numeric, nerr := s.InverseNumeric(target, seed)
	if nerr != nil {
		return numeric, nerr
	}
	return numeric, nil
}
