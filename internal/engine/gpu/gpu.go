// Package gpu defines the device capability the resource registry builds
// against. Implementations live in subpackages; MemoryDevice keeps
// everything on the CPU.
package gpu

import (
	"errors"
	"image"
)

// Device errors.
var (
	ErrEmptyData     = errors.New("empty data")
	ErrForeignHandle = errors.New("handle was created by another device")
	ErrReleased      = errors.New("handle already released")
)

// BufferUsage is a bit set describing how a buffer is bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageInstance
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageVertex:
		return "vertex"
	case BufferUsageIndex:
		return "index"
	case BufferUsageUniform:
		return "uniform"
	case BufferUsageInstance:
		return "instance"
	default:
		return "mixed"
	}
}

// Resource is an opaque device-side object.
type Resource interface {
	Release()
}

// Buffer is a device buffer.
type Buffer interface {
	Resource
	Size() int
}

// ShaderModule is a compiled shader stage.
type ShaderModule interface {
	Resource
}

// RenderPipeline binds a shader module to the vertex layouts.
type RenderPipeline interface {
	Resource
}

// Texture is a 2D RGBA texture.
type Texture interface {
	Resource
	Width() int
	Height() int
}

// Device builds GPU resources. Every method either returns a usable handle
// or an error; handles are never partially initialized.
type Device interface {
	CreateBuffer(label string, usage BufferUsage, data []byte) (Buffer, error)
	CreateShaderModule(label, source string) (ShaderModule, error)
	CreateRenderPipeline(label string, module ShaderModule, layout PipelineLayout) (RenderPipeline, error)
	CreateTexture(label string, img *image.RGBA) (Texture, error)
}

// ShaderDefaults is implemented by devices that ship a built-in fragment
// stage in their own shading language.
type ShaderDefaults interface {
	DefaultFragmentSource() string
}

// DefaultFragmentSource returns the built-in fragment stage of dev, or an
// empty string when the device has none.
func DefaultFragmentSource(dev Device) string {
	if d, ok := dev.(ShaderDefaults); ok {
		return d.DefaultFragmentSource()
	}
	return ""
}
