// Package camera provides an orbit camera for inspecting meshes.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/rendox/pkg/mesh"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32
	RotationX float32 // pitch, radians
	RotationY float32 // yaw, radians

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32

	FOV  float32 // vertical, degrees
	Near float32
	Far  float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        10,
		RotationX:       0.5,
		MinDistance:     0.1,
		MaxDistance:     1000,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		FOV:             60,
		Near:            0.05,
		Far:             2000,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	sx, cx := math.Sincos(float64(c.RotationX))
	sy, cy := math.Sincos(float64(c.RotationY))
	offset := mgl32.Vec3{
		c.Distance * float32(cx*sy),
		c.Distance * float32(sx),
		c.Distance * float32(cx*cy),
	}
	return c.Center.Add(offset)
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// Projection returns a perspective projection for the given aspect ratio.
func (c *OrbitCamera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.Near, c.Far)
}

// ViewProj returns Projection(aspect) * ViewMatrix().
func (c *OrbitCamera) ViewProj(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.ViewMatrix())
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = mgl32.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// HandleMovement pans the center point relative to the current yaw.
func (c *OrbitCamera) HandleMovement(forward, right, up float32) {
	// Speed scales with distance for consistent feel
	speed := c.Distance * 0.01

	sy, cy := math.Sincos(float64(c.RotationY))
	dir := mgl32.Vec3{float32(sy), 0, float32(cy)}
	side := mgl32.Vec3{float32(cy), 0, float32(-sy)}

	// W moves into the scene, away from the camera.
	move := dir.Mul(-forward).Add(side.Mul(right)).Add(mgl32.Vec3{0, up, 0})
	c.Center = c.Center.Add(move.Mul(speed))
}

// FitToBounds centers the camera on b and backs off far enough to see it.
func (c *OrbitCamera) FitToBounds(b mesh.Bounds) {
	c.Center = b.Center()

	radius := b.Size().Len() / 2
	if radius == 0 {
		radius = 1
	}
	half := mgl32.DegToRad(c.FOV) / 2
	c.Distance = mgl32.Clamp(radius/float32(math.Sin(float64(half)))*1.1, c.MinDistance, c.MaxDistance)
	c.RotationX = 0.4
	c.RotationY = 0.6
}
