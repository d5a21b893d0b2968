package math

import (
	gomath "math"
)

func ksin(x float32) float32 {
	return float32(gomath.Sin(float64(x)))
}

func kcos(x float32) float32 {
	return float32(gomath.Cos(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(gomath.Sqrt(float64(x)))
}

func kabs(x float32) float32 {
	return float32(gomath.Abs(float64(x)))
}

// Pow raises base to exp.
func Pow(base, exp float32) float32 {
	return float32(gomath.Pow(float64(base), float64(exp)))
}

// Abs returns the absolute value of x.
func Abs(x float32) float32 {
	return kabs(x)
}

// ------------------------------------------
// Vector 2
// ------------------------------------------

/**
 * @brief Creates and returns a new 2-element vector using the supplied values.
 */
func NewVec2(x, y float32) Vec2 {
	return Vec2{x, y}
}

func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

func (v Vec2) MulScalar(scalar float32) Vec2 {
	return Vec2{v.X * scalar, v.Y * scalar}
}

/**
 * @brief Returns the z component of the cross product of the two vectors,
 * i.e. twice the signed area of the triangle (origin, v, other).
 */
func (v Vec2) Cross(other Vec2) float32 {
	return v.X*other.Y - v.Y*other.X
}

// ------------------------------------------
// Vector 3
// ------------------------------------------

/**
 * @brief Creates and returns a new 3-element vector using the supplied values.
 */
func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

/**
 * @brief Creates and returns a 3-component vector with all components set to 0.0f.
 */
func NewVec3Zero() Vec3 {
	return Vec3{0.0, 0.0, 0.0}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		v.X + other.X,
		v.Y + other.Y,
		v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		v.X - other.X,
		v.Y - other.Y,
		v.Z - other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{
		v.X * scalar,
		v.Y * scalar,
		v.Z * scalar}
}

// DivScalar divides every component by scalar.
func (v Vec3) DivScalar(scalar float32) Vec3 {
	return Vec3{
		v.X / scalar,
		v.Y / scalar,
		v.Z / scalar}
}

func (v Vec3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float32 {
	return ksqrt(v.LengthSquared())
}

/**
 * @brief Returns a unit-length copy of the vector. Zero vectors are
 * returned unchanged.
 */
func (v Vec3) Normalize() Vec3 {
	length := v.Length()
	if length == 0 {
		return v
	}
	return Vec3{
		v.X / length,
		v.Y / length,
		v.Z / length}
}

/**
 * @brief Returns the dot product between the provided vectors. Typically used
 * to calculate the difference in direction.
 */
func (v Vec3) Dot(other Vec3) float32 {
	p := float32(0)
	p += v.X * other.X
	p += v.Y * other.Y
	p += v.Z * other.Z
	return p
}

/**
 * @brief Rotates the vector about the X axis by the given angle in radians.
 */
func (v Vec3) RotateX(angle float32) Vec3 {
	s, c := ksin(angle), kcos(angle)
	return Vec3{
		v.X,
		v.Y*c - v.Z*s,
		v.Y*s + v.Z*c}
}

/**
 * @brief Rotates the vector about the Z axis by the given angle in radians.
 */
func (v Vec3) RotateZ(angle float32) Vec3 {
	s, c := ksin(angle), kcos(angle)
	return Vec3{
		v.X*c - v.Y*s,
		v.X*s + v.Y*c,
		v.Z}
}

/**
 * @brief Compares all elements of the two vectors and ensures the difference
 * is less than tolerance.
 */
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	if kabs(v.X-other.X) > tolerance {
		return false
	}

	if kabs(v.Y-other.Y) > tolerance {
		return false
	}

	if kabs(v.Z-other.Z) > tolerance {
		return false
	}

	return true
}

// Min returns the component-wise minimum of the two vectors.
func Min(a, b Vec3) Vec3 {
	return Vec3{
		gomin(a.X, b.X),
		gomin(a.Y, b.Y),
		gomin(a.Z, b.Z)}
}

// Max returns the component-wise maximum of the two vectors.
func Max(a, b Vec3) Vec3 {
	return Vec3{
		gomax(a.X, b.X),
		gomax(a.Y, b.Y),
		gomax(a.Z, b.Z)}
}

func gomin(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func gomax(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
