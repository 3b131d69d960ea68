package clock

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// RealSecondsPerDay длительность суток Эльдары в реальных секундах (~3.43 часа)
const RealSecondsPerDay = 24.0 * 60.0 * 60.0 / 7.0

// Clock мировое время: день/ночь и уровень напряжения Worldroot.
// Продвигается только из тика симуляции, читается из любых горутин.
type Clock struct {
	mu          sync.RWMutex
	elapsedDays float64
	startedAt   time.Time
}

// New создаёт часы, начинающие с полуночи первого дня
func New() *Clock {
	return &Clock{startedAt: time.Now()}
}

// NewAt создаёт часы с заданным количеством прошедших суток (дробная часть - время суток)
func NewAt(elapsedDays float64) *Clock {
	return &Clock{elapsedDays: elapsedDays, startedAt: time.Now()}
}

// Advance продвигает мировое время на dt реального времени
func (c *Clock) Advance(dt time.Duration) {
	c.mu.Lock()
	c.elapsedDays += dt.Seconds() / RealSecondsPerDay
	c.mu.Unlock()
}

// Set устанавливает количество прошедших суток
func (c *Clock) Set(elapsedDays float64) {
	c.mu.Lock()
	c.elapsedDays = elapsedDays
	c.mu.Unlock()
}

// ElapsedDays количество прошедших суток
func (c *Clock) ElapsedDays() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsedDays
}

// TimeOfDay время суток в диапазоне [0, 1)
func (c *Clock) TimeOfDay() float64 {
	return timeOfDay(c.ElapsedDays())
}

// IsDaytime день с 06:00 до 18:00
func (c *Clock) IsDaytime() bool {
	return isDaytime(timeOfDay(c.ElapsedDays()))
}

// Strain уровень напряжения Worldroot в диапазоне [0.3, 1]
func (c *Clock) Strain() float64 {
	days := c.ElapsedDays()
	strain := 0.3 + days/10000.0
	if !isDaytime(timeOfDay(days)) {
		strain += 0.1
	}
	return math.Min(strain, 1.0)
}

// Uptime время с запуска сервера
func (c *Clock) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

// String формат "Day N, HH:MM (Day|Night)"
func (c *Clock) String() string {
	days := c.ElapsedDays()
	tod := timeOfDay(days)
	hours := int(tod * 24)
	minutes := int((tod*24 - float64(hours)) * 60)
	phase := "Night"
	if isDaytime(tod) {
		phase = "Day"
	}
	return fmt.Sprintf("Day %d, %02d:%02d (%s)", int(days), hours, minutes, phase)
}

func timeOfDay(days float64) float64 {
	return days - math.Floor(days)
}

func isDaytime(tod float64) bool {
	return tod >= 0.25 && tod < 0.75
}

// Window окно активности NPC
type Window int

const (
	Always Window = iota
	DayOnly
	NightOnly
)

// Allows разрешает ли окно активность в текущее время
func (w Window) Allows(c *Clock) bool {
	switch w {
	case DayOnly:
		return c.IsDaytime()
	case NightOnly:
		return !c.IsDaytime()
	default:
		return true
	}
}
