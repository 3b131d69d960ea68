package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Distance(t *testing.T) {
	a := New(0, 0, 0)
	b := New(3, 4, 0)

	assert.Equal(t, float32(25), a.DistanceSq(b))
	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-6)
	assert.True(t, a.WithinRange(b, 5))
	assert.False(t, a.WithinRange(b, 4.99))
}

func TestMoveTowards(t *testing.T) {
	a := New(0, 0, 0)
	target := New(10, 0, 0)

	assert.Equal(t, New(2, 0, 0), a.MoveTowards(target, 2))
	assert.Equal(t, target, a.MoveTowards(target, 20), "не перелетаем цель")
	assert.Equal(t, target, target.MoveTowards(target, 1))
}

func TestNormalizedZero(t *testing.T) {
	assert.Equal(t, Zero, Zero.Normalized())
	assert.Equal(t, Vec2{}, Vec2{}.Normalized())
}

func TestRotateYaw(t *testing.T) {
	forward := Vec2{X: 1}

	d := forward.RotateYaw(0)
	assert.InDelta(t, 1, d.X, 1e-6)
	assert.InDelta(t, 0, d.Y, 1e-6)

	d = forward.RotateYaw(90)
	assert.InDelta(t, 0, d.X, 1e-6)
	assert.InDelta(t, 1, d.Y, 1e-6)

	strafe := Vec2{Y: 1}
	d = strafe.RotateYaw(0)
	assert.InDelta(t, 0, d.X, 1e-6)
	assert.InDelta(t, 1, d.Y, 1e-6)
}
