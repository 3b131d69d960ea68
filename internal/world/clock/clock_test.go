package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayNightCycle(t *testing.T) {
	c := New()
	assert.False(t, c.IsDaytime(), "полночь - ночь")

	c.Set(0.25)
	assert.True(t, c.IsDaytime())

	c.Set(0.74)
	assert.True(t, c.IsDaytime())

	c.Set(1.75)
	assert.False(t, c.IsDaytime())
	assert.InDelta(t, 0.75, c.TimeOfDay(), 1e-9)
}

func TestAdvance(t *testing.T) {
	c := New()
	half := RealSecondsPerDay / 2
	c.Advance(time.Duration(half * float64(time.Second)))
	assert.InDelta(t, 0.5, c.ElapsedDays(), 1e-6)
}

func TestStrain(t *testing.T) {
	c := NewAt(0.5)
	assert.InDelta(t, 0.30005, c.Strain(), 1e-6)

	c.Set(0.9)
	assert.InDelta(t, 0.40009, c.Strain(), 1e-6)

	c.Set(20000)
	assert.Equal(t, 1.0, c.Strain())
}

func TestString(t *testing.T) {
	c := NewAt(3.5)
	assert.Equal(t, "Day 3, 12:00 (Day)", c.String())

	c.Set(0.0625)
	assert.Equal(t, "Day 0, 01:30 (Night)", c.String())
}

func TestWindow(t *testing.T) {
	c := NewAt(0.5)
	assert.True(t, Always.Allows(c))
	assert.True(t, DayOnly.Allows(c))
	assert.False(t, NightOnly.Allows(c))

	c.Set(0.9)
	assert.False(t, DayOnly.Allows(c))
	assert.True(t, NightOnly.Allows(c))
}
