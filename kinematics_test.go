package armsim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/referenceframe"
)

func TestForwardDefaultModel(t *testing.T) {
	solver := NewSolver(DefaultModel(), IKConfig{})

	t.Run("all zero joints point straight up", func(t *testing.T) {
		fk := solver.Forward(Joints{})
		assert.InDelta(t, 0, fk.Position.X, 1e-9)
		assert.InDelta(t, 0, fk.Position.Y, 1e-9)
		assert.InDelta(t, 730, fk.Position.Z, 1e-9)
		assert.InDelta(t, 1, fk.ToolAxis.Z, 1e-9)
	})

	t.Run("base rotation swings the arm about z", func(t *testing.T) {
		flat := solver.Forward(Joints{0, -45, 0, 0, 0, 0}).Position
		turned := solver.Forward(Joints{90, -45, 0, 0, 0, 0}).Position
		assert.InDelta(t, flat.Norm(), turned.Norm(), 1e-9)
		assert.InDelta(t, flat.Z, turned.Z, 1e-9)
		assert.InDelta(t, math.Atan2(turned.Y, turned.X)-math.Atan2(flat.Y, flat.X), math.Pi/2, 1e-9)
	})

	t.Run("link origins end at the flange", func(t *testing.T) {
		j := Joints{10, -20, 30, 15, -40, 5}
		origins := solver.LinkOrigins(j)
		require.Len(t, origins, NumJoints+1)
		assert.Equal(t, r3.Vector{}, origins[0])
		last := origins[NumJoints]
		assert.InDelta(t, 0, last.Sub(solver.Forward(j).Position).Norm(), 1e-9)
		assert.InDelta(t, 150, origins[1].Z, 1e-9)
	})
}

func TestForwardCustomModel(t *testing.T) {
	m := DefaultModel()
	m.DH = [NumJoints]DHParams{{LinkOffset: 60}}

	fk := NewSolver(m, IKConfig{}).Forward(Joints{})
	assert.InDelta(t, 0, fk.Position.X, 1e-9)
	assert.InDelta(t, 0, fk.Position.Y, 1e-9)
	assert.GreaterOrEqual(t, fk.Position.Z, 60.0)
	assert.InDelta(t, 60, fk.Position.Z, 1e-9)
}

func TestForwardEulerAngles(t *testing.T) {
	m := DefaultModel()
	m.DH = [NumJoints]DHParams{}

	fk := NewSolver(m, IKConfig{}).Forward(Joints{30, 0, 0, 0, 0, 0})
	assert.InDelta(t, 0, fk.Orientation.RX, 1e-9)
	assert.InDelta(t, 0, fk.Orientation.RY, 1e-9)
	assert.InDelta(t, 30, fk.Orientation.RZ, 1e-9)
}

// downwardJoints builds joint vectors whose tool points straight down, the
// pose the closed-form solver produces.
func downwardJoints(rng *rand.Rand, m *RobotModel) (Joints, bool) {
	j := Joints{
		rng.Float64()*340 - 170,
		rng.Float64()*240 - 120,
		rng.Float64()*280 - 140,
		0, 0, 0,
	}
	j[4] = wrapDeg(-180 - j[1] - j[2])
	return j, len(m.jointViolations(j)) == 0
}

func TestInverseGeometricRoundTrip(t *testing.T) {
	m := DefaultModel()
	solver := NewSolver(m, IKConfig{})
	rng := rand.New(rand.NewSource(7))

	t.Run("recovers the position of random joint vectors", func(t *testing.T) {
		solved := 0
		for i := 0; i < 500; i++ {
			var j Joints
			for k, spec := range m.Joints {
				j[k] = spec.MinAngleDeg + rng.Float64()*(spec.MaxAngleDeg-spec.MinAngleDeg)
			}
			target := solver.Forward(j).Position
			for _, elbow := range []ElbowConfig{ElbowUp, ElbowDown} {
				sol, err := solver.InverseGeometric(target, GeometricOptions{Elbow: elbow})
				if err != nil {
					require.True(t, errors.Is(err, ErrUnreachable), "unexpected error %v", err)
					continue
				}
				solved++
				got := solver.Forward(sol).Position
				assert.InDelta(t, 0, got.Sub(target).Norm(), 1e-3)
			}
		}
		assert.Greater(t, solved, 0)
	})

	t.Run("recovers joints of downward poses", func(t *testing.T) {
		checked := 0
		for i := 0; i < 500; i++ {
			j, ok := downwardJoints(rng, m)
			if !ok {
				continue
			}
			target := solver.Forward(j).Position
			radial := r3.Vector{X: math.Cos(degToRad(j[0])), Y: math.Sin(degToRad(j[0]))}
			if target.X*radial.X+target.Y*radial.Y < 1 {
				continue
			}
			elbow := ElbowDown
			if j[2] < 0 {
				elbow = ElbowUp
			}
			sol, err := solver.InverseGeometric(target, GeometricOptions{Elbow: elbow})
			require.NoError(t, err, "joints %v", j)
			for k := range j {
				assert.InDelta(t, j[k], sol[k], 1e-3, "joint %d of %v", k+1, j)
			}
			checked++
		}
		assert.Greater(t, checked, 20)
	})
}

func TestInverseGeometric(t *testing.T) {
	solver := NewSolver(DefaultModel(), IKConfig{})

	t.Run("elbow configurations mirror the bend", func(t *testing.T) {
		wide := DefaultModel()
		for i := range wide.Joints {
			wide.Joints[i].MinAngleDeg, wide.Joints[i].MaxAngleDeg = -360, 360
		}
		wideSolver := NewSolver(wide, IKConfig{})
		target := r3.Vector{X: 300, Y: 0, Z: 200}
		up, err := wideSolver.InverseGeometric(target, GeometricOptions{Elbow: ElbowUp})
		require.NoError(t, err)
		down, err := wideSolver.InverseGeometric(target, GeometricOptions{Elbow: ElbowDown})
		require.NoError(t, err)
		assert.Less(t, up[2], 0.0)
		assert.Greater(t, down[2], 0.0)
		assert.InDelta(t, -up[2], down[2], 1e-9)
		assert.Equal(t, 0.0, up[3])
		assert.Equal(t, 0.0, up[5])
	})

	t.Run("elbow up sits above the shoulder to wrist line", func(t *testing.T) {
		wide := DefaultModel()
		for i := range wide.Joints {
			wide.Joints[i].MinAngleDeg, wide.Joints[i].MaxAngleDeg = -360, 360
		}
		wideSolver := NewSolver(wide, IKConfig{})
		target := r3.Vector{X: 300, Y: 0, Z: 200}

		// side is positive when the elbow is above the line in the x-z plane.
		side := func(elbow ElbowConfig) float64 {
			j, err := wideSolver.InverseGeometric(target, GeometricOptions{Elbow: elbow})
			require.NoError(t, err)
			o := wideSolver.LinkOrigins(j)
			shoulder, el, wrist := o[1], o[2], o[4]
			return (wrist.X-shoulder.X)*(el.Z-shoulder.Z) - (wrist.Z-shoulder.Z)*(el.X-shoulder.X)
		}
		assert.Greater(t, side(ElbowUp), 0.0)
		assert.Less(t, side(ElbowDown), 0.0)
	})

	t.Run("tool points straight down", func(t *testing.T) {
		sol, err := solver.InverseGeometric(r3.Vector{X: 200, Y: 150, Z: 100}, GeometricOptions{})
		require.NoError(t, err)
		axis := solver.Forward(sol).ToolAxis
		assert.InDelta(t, -1, axis.Z, 1e-9)
	})

	t.Run("tool roll sets the last joint", func(t *testing.T) {
		sol, err := solver.InverseGeometric(r3.Vector{X: 300, Y: 0, Z: 200}, GeometricOptions{ToolRollDeg: 45})
		require.NoError(t, err)
		assert.Equal(t, 45.0, sol[5])
	})

	t.Run("full reach is accepted within rounding", func(t *testing.T) {
		sol, err := solver.InverseGeometric(r3.Vector{X: 500, Y: 0, Z: 70}, GeometricOptions{})
		require.NoError(t, err)
		assert.InDelta(t, 0, sol[2], 1e-3)
		assert.InDelta(t, -90, sol[1], 1e-3)
	})

	t.Run("beyond reach is unreachable", func(t *testing.T) {
		for _, target := range []r3.Vector{
			{X: 500.01, Y: 0, Z: 70},
			{X: 0, Y: 0, Z: 2000},
			{X: 1000, Y: 0, Z: 300},
		} {
			_, err := solver.InverseGeometric(target, GeometricOptions{})
			assert.True(t, errors.Is(err, ErrUnreachable), "target %v: %v", target, err)
			var ue *UnreachableError
			assert.True(t, errors.As(err, &ue))
		}
	})

	t.Run("joint limit violations are rejected not clamped", func(t *testing.T) {
		m := DefaultModel()
		m.Joints[1].MinAngleDeg, m.Joints[1].MaxAngleDeg = -10, 10
		_, err := NewSolver(m, IKConfig{}).InverseGeometric(r3.Vector{X: 300, Y: 0, Z: 200}, GeometricOptions{})
		assert.True(t, errors.Is(err, ErrUnreachable))
		assert.Contains(t, err.Error(), "joint 2")
	})

	t.Run("non spherical wrist models have no closed form", func(t *testing.T) {
		m := DefaultModel()
		m.DH[4].LinkLength = 10
		_, err := NewSolver(m, IKConfig{}).InverseGeometric(r3.Vector{X: 300, Y: 0, Z: 200}, GeometricOptions{})
		assert.True(t, errors.Is(err, ErrUnreachable))
	})
}

func TestInverseNumeric(t *testing.T) {
	m := DefaultModel()
	solver := NewSolver(m, IKConfig{})
	goal := Joints{20, -30, -60, 10, -45, 0}
	target := solver.Forward(goal).Position

	t.Run("converges from a nearby seed", func(t *testing.T) {
		var seed Joints
		for i := range goal {
			seed[i] = goal[i] + 0.5
		}
		sol, err := solver.InverseNumeric(target, seed)
		require.NoError(t, err)
		assert.LessOrEqual(t, solver.Forward(sol).Position.Sub(target).Norm(), 0.001)
		assert.Empty(t, m.jointViolations(sol))
	})

	t.Run("larger steps converge from further away", func(t *testing.T) {
		fast := NewSolver(m, IKConfig{StepSize: 0.5})
		sol, err := fast.InverseNumeric(target, Joints{0, -20, -40, 0, -40, 0})
		require.NoError(t, err)
		assert.LessOrEqual(t, fast.Forward(sol).Position.Sub(target).Norm(), 0.001)
	})

	t.Run("exhausted budget returns best effort", func(t *testing.T) {
		short := NewSolver(m, IKConfig{MaxIterations: 3})
		start := Joints{0, -10, -20, 0, -30, 0}
		startErr := short.Forward(start).Position.Sub(target).Norm()

		sol, err := short.InverseNumeric(target, start)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotConverged))
		var nc *NotConvergedError
		require.True(t, errors.As(err, &nc))
		assert.Equal(t, sol, nc.BestEffort)
		assert.Equal(t, 3, nc.Iterations)
		assert.Less(t, nc.Residual, startErr)
	})

	t.Run("out of range seeds are clamped", func(t *testing.T) {
		short := NewSolver(m, IKConfig{MaxIterations: 1})
		sol, _ := short.InverseNumeric(target, Joints{400, 0, 0, 0, 0, 0})
		assert.Empty(t, m.jointViolations(sol))
	})
}

func TestInverseFallback(t *testing.T) {
	m := DefaultModel()
	m.DH[4].LinkLength = 10
	solver := NewSolver(m, IKConfig{StepSize: 0.5})
	goal := Joints{10, -20, -70, 0, -60, 0}
	target := solver.Forward(goal).Position

	var seed Joints
	for i := range goal {
		seed[i] = goal[i] + 2
	}
	sol, err := solver.Inverse(target, seed, GeometricOptions{})
	require.NoError(t, err)
	assert.LessOrEqual(t, solver.Forward(sol).Position.Sub(target).Norm(), 0.001)

	noFallback := NewSolver(m, IKConfig{DisableNumericFallback: true})
	_, err = noFallback.Inverse(target, seed, GeometricOptions{})
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestWrapDeg(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{720, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrapDeg(tt.in), 1e-9, "wrapDeg(%v)", tt.in)
	}
}

func TestKinematicsMatchesForward(t *testing.T) {
	m := DefaultModel()
	solver := NewSolver(m, IKConfig{})
	frame, err := m.Kinematics()
	require.NoError(t, err)
	assert.Len(t, frame.DoF(), NumJoints)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		var j Joints
		for k := range j {
			j[k] = m.Joints[k].MinAngleDeg + rng.Float64()*(m.Joints[k].MaxAngleDeg-m.Joints[k].MinAngleDeg)
		}
		pose, err := referenceframe.ComputeOOBPosition(frame, m.FrameInputs(j))
		require.NoError(t, err)
		assert.InDelta(t, 0, pose.Point().Sub(solver.Forward(j).Position).Norm(), 1e-6, "%v", j)
	}
}
