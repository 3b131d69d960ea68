package vec

import "math"

// Vec3 представляет точку или направление в мире.
// X/Y - горизонтальная плоскость, Z - высота.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Zero нулевой вектор
var Zero = Vec3{}

// New создает вектор из компонент
func New(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(scalar float32) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// LengthSq возвращает квадрат длины вектора
func (v Vec3) LengthSq() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length возвращает длину вектора
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSq())))
}

// Normalized возвращает нормализованный вектор
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length == 0 {
		return Zero
	}
	return v.Mul(1 / length)
}

// DistanceSq возвращает квадрат расстояния до другой точки
func (v Vec3) DistanceSq(other Vec3) float32 {
	return v.Sub(other).LengthSq()
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec3) DistanceTo(other Vec3) float32 {
	return v.Sub(other).Length()
}

// WithinRange проверяет расстояние без извлечения корня
func (v Vec3) WithinRange(other Vec3, radius float32) bool {
	return v.DistanceSq(other) <= radius*radius
}

// MoveTowards сдвигает точку к цели не дальше чем на maxStep
func (v Vec3) MoveTowards(target Vec3, maxStep float32) Vec3 {
	delta := target.Sub(v)
	dist := delta.Length()
	if dist <= maxStep || dist == 0 {
		return target
	}
	return v.Add(delta.Mul(maxStep / dist))
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// YawDegrees угол направления в горизонтальной плоскости, 0 - ось X
func (v Vec3) YawDegrees() float32 {
	return float32(math.Atan2(float64(v.Y), float64(v.X)) * 180 / math.Pi)
}
