// Package lighting provides lighting utilities for 3D rendering.
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SunDirection converts azimuth/elevation angles in degrees to a unit
// vector pointing towards the sun. Azimuth rotates around Y starting at +Z,
// elevation is measured from the horizon.
func SunDirection(azimuth, elevation float32) mgl32.Vec3 {
	az := float64(mgl32.DegToRad(azimuth))
	el := float64(mgl32.DegToRad(elevation))

	return mgl32.Vec3{
		float32(math.Cos(el) * math.Sin(az)),
		float32(math.Sin(el)),
		float32(math.Cos(el) * math.Cos(az)),
	}
}

// Sun is a directional light given by its angles.
type Sun struct {
	Azimuth   float32
	Elevation float32
}

// Direction returns the direction light travels, from the sun to the scene.
func (s Sun) Direction() mgl32.Vec3 {
	return SunDirection(s.Azimuth, s.Elevation).Mul(-1)
}

// Rotate turns the sun around Y, keeping the azimuth in [0, 360).
func (s *Sun) Rotate(degrees float32) {
	s.Azimuth = float32(math.Mod(float64(s.Azimuth+degrees), 360))
	if s.Azimuth < 0 {
		s.Azimuth += 360
	}
}
