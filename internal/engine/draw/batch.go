package draw

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/engine/resource"
)

// Batch is one instanced draw: every instance of a descriptor this frame.
type Batch struct {
	Descriptor resource.MeshDescriptor
	Mesh       *resource.Mesh
	Material   *resource.Material
	Shader     *resource.Shader
	Colors     []mgl32.Vec3
	Transforms []mgl32.Mat4
}

// Instances returns the instance count.
func (b *Batch) Instances() int {
	return len(b.Transforms)
}

// InstanceData packs the instances in gpu.InstanceLayout: color.xyz then
// the column-major model matrix, little-endian float32.
func (b *Batch) InstanceData() []byte {
	buf := make([]byte, 0, len(b.Transforms)*gpu.InstanceLayout.Stride)
	put := func(fs []float32) {
		for _, f := range fs {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	for i := range b.Transforms {
		put(b.Colors[i][:])
		put(b.Transforms[i][:])
	}
	return buf
}
