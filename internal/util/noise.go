package util

import (
	"math"

	"github.com/aquilax/go-perlin"
)

const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3   // Количество октав
)

// Noise детерминированный генератор шума Перлина. После создания только читается,
// поэтому безопасен для конкурентного использования.
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор с указанным сидом
func NewNoise(seed int64) *Noise {
	return &Noise{p: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)}
}

// Noise2D возвращает значение шума Перлина для указанных координат (от 0 до 1)
func (n *Noise) Noise2D(x, y float64) float64 {
	// Получаем значение шума (примерно от -1 до 1)
	v := n.p.Noise2D(x, y)

	// Преобразуем в диапазон от 0 до 1
	v = (v + 1.0) / 2.0
	return math.Max(0, math.Min(1, v))
}

// Offset2D смещение внутри круга радиуса radius для точки (x, y) и номера выборки.
// Одинаковые аргументы всегда дают одинаковое смещение.
func (n *Noise) Offset2D(x, y float64, sample int, radius float64) (dx, dy float64) {
	// Узлы решётки дают нулевой шум, поэтому координаты сдвигаются на дробный шаг
	sx := x*0.173 + float64(sample)*0.618 + 0.5
	sy := y*0.173 + float64(sample)*0.382 + 0.5

	angle := n.Noise2D(sx, sy) * 2 * math.Pi
	dist := n.Noise2D(sy+17.31, sx+29.77) * radius
	return math.Cos(angle) * dist, math.Sin(angle) * dist
}
