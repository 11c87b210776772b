// Package scene is the per-frame facade over the resource registry and the
// draw queue. Callers load and bind resources, queue draws, then call Frame
// once per frame to materialize pending resources and collect the batches.
package scene

import (
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/draw"
	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/logger"
)

// Scene threads one registry and one queue through a frame.
type Scene struct {
	reg   *resource.Registry
	queue *draw.Queue
	log   *zap.Logger

	frames uint64
}

// New creates a scene over reg and q.
func New(reg *resource.Registry, q *draw.Queue) *Scene {
	return &Scene{
		reg:   reg,
		queue: q,
		log:   logger.Named("scene"),
	}
}

// Registry returns the scene's registry.
func (s *Scene) Registry() *resource.Registry {
	return s.reg
}

// Queue returns the scene's draw queue.
func (s *Scene) Queue() *draw.Queue {
	return s.queue
}

// Frames returns how many frames have been run.
func (s *Scene) Frames() uint64 {
	return s.frames
}

// LoadMesh loads the OBJ at path and returns a descriptor drawing it with
// the default material. The descriptor is named after the file.
func (s *Scene) LoadMesh(path string) (resource.MeshDescriptor, error) {
	slot, err := s.reg.LoadMesh(path)
	if err != nil {
		s.log.Warn("mesh load failed", zap.String("path", path), zap.Error(err))
		return resource.MeshDescriptor{}, err
	}
	return s.reg.Descriptor(slot, meshName(path)), nil
}

func meshName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadShader loads a fragment shader file.
func (s *Scene) LoadShader(path string) (resource.ShaderSlot, error) {
	slot, err := s.reg.LoadShader(path)
	if err != nil {
		s.log.Warn("shader load failed", zap.String("path", path), zap.Error(err))
	}
	return slot, err
}

// LoadMaterial registers desc.
func (s *Scene) LoadMaterial(desc resource.MaterialDescriptor) resource.MaterialSlot {
	return s.reg.LoadMaterial(desc)
}

// BindMaterial points md at slot.
func (s *Scene) BindMaterial(md *resource.MeshDescriptor, slot resource.MaterialSlot) bool {
	return s.reg.BindMaterial(md, slot)
}

// BindShader overrides the shader md draws with.
func (s *Scene) BindShader(md *resource.MeshDescriptor, slot resource.ShaderSlot) bool {
	return s.reg.BindShader(md, slot)
}

// Draw queues one instance of md at the origin.
func (s *Scene) Draw(md resource.MeshDescriptor, color mgl32.Vec3) bool {
	return s.submit(md, color, mgl32.Ident4())
}

// DrawAt queues one instance of md with the given translation, XYZ euler
// rotation in radians, and scale.
func (s *Scene) DrawAt(md resource.MeshDescriptor, color, pos, rot, scale mgl32.Vec3) bool {
	return s.submit(md, color, Transform(pos, rot, scale))
}

// DrawInstances queues one instance of md per transform, cycling colors.
func (s *Scene) DrawInstances(md resource.MeshDescriptor, transforms []mgl32.Mat4, colors []mgl32.Vec3) bool {
	if s.queue.SubmitMany(md, transforms, colors) {
		return true
	}
	s.log.Warn("draw call dropped", zap.String("mesh", md.Name), zap.Int("instances", len(transforms)))
	return false
}

func (s *Scene) submit(md resource.MeshDescriptor, color mgl32.Vec3, transform mgl32.Mat4) bool {
	if s.queue.Submit(md, color, transform) {
		return true
	}
	s.log.Warn("draw call dropped", zap.String("mesh", md.Name))
	return false
}

// Frame materializes pending resources on dev and flushes the queue. The
// returned batches are only valid until the next Frame.
func (s *Scene) Frame(dev gpu.Device) []draw.Batch {
	s.frames++
	if err := s.reg.Refresh(dev); err != nil {
		s.log.Warn("refresh skipped", zap.Uint64("frame", s.frames), zap.Error(err))
	}
	return s.queue.Flush(s.reg)
}

// Transform builds translation * rotation * scale, so scale is applied
// first. Rotation is X, then Y, then Z composed as Rx * Ry * Rz.
func Transform(pos, rot, scale mgl32.Vec3) mgl32.Mat4 {
	r := mgl32.HomogRotate3DX(rot.X()).
		Mul4(mgl32.HomogRotate3DY(rot.Y())).
		Mul4(mgl32.HomogRotate3DZ(rot.Z()))
	return mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()).
		Mul4(r).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}
