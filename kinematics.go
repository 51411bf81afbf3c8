package armsim

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Orientation is an XYZ Euler triple in degrees.
type Orientation struct {
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
	RZ float64 `json:"rz"`
}

// ForwardResult is the pose of the tool flange for a joint vector.
type ForwardResult struct {
	Position    r3.Vector
	Rotation    [3][3]float64
	Orientation Orientation
	// ToolAxis is the unit z axis of the flange frame in base coordinates.
	ToolAxis r3.Vector
}

// Solver converts between joint space and Cartesian space for one model.
// It holds no mutable state and is safe for concurrent use.
type Solver struct {
	model *RobotModel
	cfg   IKConfig
}

// NewSolver returns a solver for the model. Zero-valued IK parameters take
// their defaults.
func NewSolver(model *RobotModel, cfg IKConfig) *Solver {
	cfg.setDefaults()
	return &Solver{model: model, cfg: cfg}
}

func (s *Solver) Model() *RobotModel { return s.model }

// Forward composes the DH chain for the joints and returns the flange pose.
func (s *Solver) Forward(joints Joints) ForwardResult {
	t := s.chain(joints, nil)
	var res ForwardResult
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			res.Rotation[r][c] = t.At(r, c)
		}
	}
	res.Position = r3.Vector{X: t.At(0, 3), Y: t.At(1, 3), Z: t.At(2, 3)}
	res.ToolAxis = r3.Vector{X: t.At(0, 2), Y: t.At(1, 2), Z: t.At(2, 2)}
	res.Orientation = eulerFromRotation(res.Rotation)
	return res
}

// LinkOrigins returns the base origin followed by the origin of every joint
// frame, ending with the flange.
func (s *Solver) LinkOrigins(joints Joints) []r3.Vector {
	origins := []r3.Vector{{}}
	s.chain(joints, func(t *mat.Dense) {
		origins = append(origins, r3.Vector{X: t.At(0, 3), Y: t.At(1, 3), Z: t.At(2, 3)})
	})
	return origins
}

// chain multiplies the per-joint transforms, calling visit with the
// accumulated transform after each joint.
func (s *Solver) chain(joints Joints, visit func(*mat.Dense)) *mat.Dense {
	acc := identity4()
	for i, p := range s.model.DH {
		next := mat.NewDense(4, 4, nil)
		next.Mul(acc, dhTransform(p, joints[i]))
		acc = next
		if visit != nil {
			visit(acc)
		}
	}
	return acc
}

// dhTransform is Rot_z(theta+offset) * Trans_z(d) * Trans_x(a) * Rot_x(alpha).
func dhTransform(p DHParams, thetaDeg float64) *mat.Dense {
	th := degToRad(thetaDeg + p.AngleOffset)
	al := degToRad(p.LinkTwist)
	ct, st := math.Cos(th), math.Sin(th)
	ca, sa := math.Cos(al), math.Sin(al)
	return mat.NewDense(4, 4, []float64{
		ct, -st * ca, st * sa, p.LinkLength * ct,
		st, ct * ca, -ct * sa, p.LinkLength * st,
		0, sa, ca, p.LinkOffset,
		0, 0, 0, 1,
	})
}

func identity4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func eulerFromRotation(r [3][3]float64) Orientation {
	return Orientation{
		RX: radToDeg(math.Atan2(r[2][1], r[2][2])),
		RY: radToDeg(math.Atan2(-r[2][0], math.Hypot(r[2][1], r[2][2]))),
		RZ: radToDeg(math.Atan2(r[1][0], r[0][0])),
	}
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// wrapDeg maps an angle into (-180, 180].
func wrapDeg(a float64) float64 {
	a = math.Mod(a, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}
