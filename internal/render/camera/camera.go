// Package camera holds the first-person camera math for viewing a chunk
// world. It builds matrices only; nothing here draws.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxPitch keeps the camera from flipping over the vertical.
var MaxPitch = mgl32.DegToRad(89)

// Camera angles are radians. Yaw 0 looks down +X; positive pitch looks up.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Fov      float32
	Aspect   float32
	Near     float32
	Far      float32
}

func New(aspect float32) *Camera {
	return &Camera{
		Position: mgl32.Vec3{0, 32, 0},
		Fov:      mgl32.DegToRad(70),
		Aspect:   aspect,
		Near:     0.1,
		Far:      1000,
	}
}

// View is a right-handed look-at matrix with +Y up.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(c.Fov, c.Aspect, c.Near, c.Far)
}

// ViewProjection is Projection * View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

func (c *Camera) Forward() mgl32.Vec3 {
	yaw, pitch := float64(c.Yaw), float64(c.Pitch)
	return mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

// MoveForward walks along the horizontal heading; pitch does not change height.
func (c *Camera) MoveForward(d float32) {
	yaw := float64(c.Yaw)
	dir := mgl32.Vec3{float32(math.Cos(yaw)), 0, float32(math.Sin(yaw))}
	c.Position = c.Position.Add(dir.Mul(d))
}

func (c *Camera) MoveBackward(d float32) { c.MoveForward(-d) }

func (c *Camera) MoveRight(d float32) {
	c.Position = c.Position.Add(c.Right().Mul(d))
}

func (c *Camera) MoveLeft(d float32) { c.MoveRight(-d) }
func (c *Camera) MoveUp(d float32)   { c.Position[1] += d }
func (c *Camera) MoveDown(d float32) { c.Position[1] -= d }

func (c *Camera) Rotate(dyaw, dpitch float32) {
	c.Yaw += dyaw
	c.Pitch = mgl32.Clamp(c.Pitch+dpitch, -MaxPitch, MaxPitch)
}

func (c *Camera) SetAspect(aspect float32) { c.Aspect = aspect }
