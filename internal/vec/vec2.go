package vec

import "math"

// Vec2 двумерный вектор: оси ввода игрока (forward/strafe) и горизонтальные смещения.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Length возвращает длину вектора
func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// Normalized возвращает нормализованный вектор
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

// RotateYaw поворачивает оси ввода (X - forward, Y - strafe) на угол yaw в градусах
// и возвращает горизонтальное направление в мировых координатах.
func (v Vec2) RotateYaw(yawDegrees float32) Vec3 {
	rad := float64(yawDegrees) * math.Pi / 180
	cos := float32(math.Cos(rad))
	sin := float32(math.Sin(rad))
	// forward = (cos, sin), right = (-sin, cos)
	return Vec3{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}
