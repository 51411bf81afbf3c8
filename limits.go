package armsim

import (
	"math"

	"github.com/golang/geo/r3"
)

// Axis names a Cartesian axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// PositionReport is the result of checking a point against the workspace.
type PositionReport struct {
	Valid        bool
	ViolatedAxes []Axis
	// KeepOutZone names the keep-out box containing the point, if any.
	KeepOutZone string
}

// JointViolation records one joint outside its range. Limit is the bound
// that was crossed.
type JointViolation struct {
	Index int
	Angle float64
	Limit float64
}

type JointReport struct {
	Valid      bool
	Violations []JointViolation
}

// Limits checks positions and joint vectors against a model. Checks never
// modify their input; clamping is a separate explicit call.
type Limits struct {
	model *RobotModel
}

func NewLimits(model *RobotModel) *Limits {
	return &Limits{model: model}
}

// ValidatePosition checks each axis against the workspace box and the point
// against every keep-out zone. NaN fails its axis.
func (l *Limits) ValidatePosition(p r3.Vector) PositionReport {
	ws := l.model.Workspace
	var axes []Axis
	if !(p.X >= ws.XMin && p.X <= ws.XMax) {
		axes = append(axes, AxisX)
	}
	if !(p.Y >= ws.YMin && p.Y <= ws.YMax) {
		axes = append(axes, AxisY)
	}
	if !(p.Z >= ws.ZMin && p.Z <= ws.ZMax) {
		axes = append(axes, AxisZ)
	}
	report := PositionReport{ViolatedAxes: axes}
	for _, b := range l.model.KeepOut {
		if b.Contains(p) {
			report.KeepOutZone = b.Name
			break
		}
	}
	report.Valid = len(axes) == 0 && report.KeepOutZone == ""
	return report
}

func (l *Limits) ValidateJoints(j Joints) JointReport {
	v := l.model.jointViolations(j)
	return JointReport{Valid: len(v) == 0, Violations: v}
}

// ClampPosition pulls each coordinate into the workspace box.
func (l *Limits) ClampPosition(p r3.Vector) r3.Vector {
	ws := l.model.Workspace
	return r3.Vector{
		X: clamp(p.X, ws.XMin, ws.XMax),
		Y: clamp(p.Y, ws.YMin, ws.YMax),
		Z: clamp(p.Z, ws.ZMin, ws.ZMax),
	}
}

func (l *Limits) ClampJoints(j Joints) Joints {
	return l.model.clampJoints(j)
}

// IsPathValid samples the straight segment from start to end, both ends
// included, and checks every sample. steps <= 0 uses 10.
func (l *Limits) IsPathValid(start, end r3.Vector, steps int) bool {
	_, _, ok := l.firstInvalidSample(start, end, steps)
	return ok
}

// firstInvalidSample returns the first failing sample and its report, or
// ok=true when every sample passes.
func (l *Limits) firstInvalidSample(start, end r3.Vector, steps int) (r3.Vector, PositionReport, bool) {
	if steps <= 0 {
		steps = 10
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := start.Mul(1 - t).Add(end.Mul(t))
		if report := l.ValidatePosition(p); !report.Valid {
			return p, report, false
		}
	}
	return r3.Vector{}, PositionReport{Valid: true}, true
}

// positionError converts a failed report into an *OutOfWorkspaceError.
func positionError(p r3.Vector, report PositionReport) error {
	if report.Valid {
		return nil
	}
	return &OutOfWorkspaceError{Position: p, ViolatedAxes: report.ViolatedAxes, Zone: report.KeepOutZone}
}

func (m *RobotModel) jointViolations(j Joints) []JointViolation {
	var out []JointViolation
	for i, a := range j {
		spec := m.Joints[i]
		switch {
		case math.IsNaN(a):
			out = append(out, JointViolation{Index: i, Angle: a, Limit: spec.MaxAngleDeg})
		case a < spec.MinAngleDeg:
			out = append(out, JointViolation{Index: i, Angle: a, Limit: spec.MinAngleDeg})
		case a > spec.MaxAngleDeg:
			out = append(out, JointViolation{Index: i, Angle: a, Limit: spec.MaxAngleDeg})
		}
	}
	return out
}

func (m *RobotModel) clampJoints(j Joints) Joints {
	for i := range j {
		j[i] = clamp(j[i], m.Joints[i].MinAngleDeg, m.Joints[i].MaxAngleDeg)
	}
	return j
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
