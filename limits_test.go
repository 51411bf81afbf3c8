package armsim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePosition(t *testing.T) {
	limits := NewLimits(DefaultModel())

	tests := []struct {
		name string
		p    r3.Vector
		axes []Axis
	}{
		{"inside", r3.Vector{X: 300, Y: 0, Z: 200}, nil},
		{"on the boundary", r3.Vector{X: 500, Y: -500, Z: 0}, nil},
		{"x too far", r3.Vector{X: 1000, Y: 0, Z: 300}, []Axis{AxisX}},
		{"below the floor", r3.Vector{X: 0, Y: 0, Z: -1}, []Axis{AxisZ}},
		{"every axis", r3.Vector{X: -501, Y: 501, Z: 801}, []Axis{AxisX, AxisY, AxisZ}},
		{"NaN fails its axis", r3.Vector{X: 0, Y: math.NaN(), Z: 100}, []Axis{AxisY}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := limits.ValidatePosition(tt.p)
			assert.Equal(t, len(tt.axes) == 0, report.Valid)
			assert.Equal(t, tt.axes, report.ViolatedAxes)
			assert.Empty(t, report.KeepOutZone)
		})
	}
}

func TestValidatePositionKeepOut(t *testing.T) {
	m := DefaultModel()
	m.KeepOut = []Box{{Name: "fixture", Min: r3.Vector{X: 100, Y: -50, Z: 0}, Max: r3.Vector{X: 200, Y: 50, Z: 100}}}
	limits := NewLimits(m)

	report := limits.ValidatePosition(r3.Vector{X: 150, Y: 0, Z: 50})
	assert.False(t, report.Valid)
	assert.Empty(t, report.ViolatedAxes)
	assert.Equal(t, "fixture", report.KeepOutZone)

	err := positionError(r3.Vector{X: 150, Y: 0, Z: 50}, report)
	assert.ErrorIs(t, err, ErrOutOfWorkspace)
	assert.Contains(t, err.Error(), "fixture")

	assert.True(t, limits.ValidatePosition(r3.Vector{X: 150, Y: 0, Z: 150}).Valid)
}

func TestValidateJoints(t *testing.T) {
	limits := NewLimits(DefaultModel())

	report := limits.ValidateJoints(Joints{30, 45, -45, 90, -90, 180})
	assert.True(t, report.Valid)
	assert.Empty(t, report.Violations)

	report = limits.ValidateJoints(Joints{0, 140, 0, 0, -200, 0})
	require.False(t, report.Valid)
	assert.Equal(t, []JointViolation{
		{Index: 1, Angle: 140, Limit: 135},
		{Index: 4, Angle: -200, Limit: -135},
	}, report.Violations)

	report = limits.ValidateJoints(Joints{math.NaN(), 0, 0, 0, 0, 0})
	assert.False(t, report.Valid)
}

func TestClampJoints(t *testing.T) {
	m := DefaultModel()
	limits := NewLimits(m)

	got := limits.ClampJoints(Joints{200, -140, 10, 0, 136, -400})
	assert.Equal(t, Joints{180, -135, 10, 0, 135, -360}, got)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		var j Joints
		for k := range j {
			j[k] = rng.Float64()*1000 - 500
		}
		once := limits.ClampJoints(j)
		assert.True(t, limits.ValidateJoints(once).Valid)
		assert.Equal(t, once, limits.ClampJoints(once))
	}
}

func TestClampPosition(t *testing.T) {
	limits := NewLimits(DefaultModel())

	got := limits.ClampPosition(r3.Vector{X: 1000, Y: -600, Z: 300})
	assert.Equal(t, r3.Vector{X: 500, Y: -500, Z: 300}, got)
	assert.True(t, limits.ValidatePosition(got).Valid)

	inside := r3.Vector{X: 1, Y: 2, Z: 3}
	assert.Equal(t, inside, limits.ClampPosition(inside))
}

func TestIsPathValid(t *testing.T) {
	m := DefaultModel()
	m.KeepOut = []Box{{Name: "post", Min: r3.Vector{X: -20, Y: -20, Z: 0}, Max: r3.Vector{X: 20, Y: 20, Z: 400}}}
	limits := NewLimits(m)

	start := r3.Vector{X: -300, Y: 0, Z: 200}
	end := r3.Vector{X: 300, Y: 0, Z: 200}
	assert.False(t, limits.IsPathValid(start, end, 10))
	assert.False(t, limits.IsPathValid(start, end, 0))

	p, report, ok := limits.firstInvalidSample(start, end, 10)
	require.False(t, ok)
	assert.Equal(t, "post", report.KeepOutZone)
	assert.InDelta(t, 0, p.X, 1e-9)

	over := r3.Vector{X: 300, Y: 0, Z: 500}
	assert.True(t, limits.IsPathValid(r3.Vector{X: -300, Y: 0, Z: 500}, over, 10))

	// An invalid end point fails even when every other sample passes.
	assert.False(t, limits.IsPathValid(start, r3.Vector{X: -300, Y: 0, Z: 900}, 10))
}
