package main

import (
	"math"

	"github.com/google/uuid"
)

// GenerateUUID returns a random v4 UUID string
func GenerateUUID() string {
	return uuid.NewString()
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// DistanceSq returns the squared distance between two points
func DistanceSq(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}

// NormalizeAngle wraps angle to [-PI, PI]
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	return math.Remainder(a, 2*math.Pi)
}

// LerpAngle interpolates between two angles taking the short path
func LerpAngle(from, to, t float64) float64 {
	diff := NormalizeAngle(to - from)
	return from + diff*t
}

// Heading returns the unit vector for an angle. Angle 0 points up (-Y),
// angles grow clockwise.
func Heading(angle float64) (float64, float64) {
	return math.Sin(angle), -math.Cos(angle)
}

// AngleTo returns the heading angle from (x1,y1) towards (x2,y2)
func AngleTo(x1, y1, x2, y2 float64) float64 {
	return math.Atan2(x2-x1, -(y2 - y1))
}

// Smoothstep eases t in [0,1] with zero slope at both ends
func Smoothstep(t float64) float64 {
	t = Clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

// maxInputAngle bounds the angles accepted from clients
const maxInputAngle = 4 * math.Pi

func validAngle(a float64) bool {
	return !math.IsNaN(a) && !math.IsInf(a, 0)
}

// inputAngle reports whether a client angle is finite and within range
func inputAngle(a float64) bool {
	return validAngle(a) && math.Abs(a) <= maxInputAngle
}
