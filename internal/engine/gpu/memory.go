package gpu

import (
	"fmt"
	"image"
	"strings"
)

// MemoryDevice is a Device that keeps every resource in process memory.
// It backs tests and dry-run bakes.
type MemoryDevice struct {
	// ShaderCheck, when set, validates shader source before a module is
	// created. A non-nil error fails the build.
	ShaderCheck func(label, source string) error

	Buffers   int
	Modules   int
	Pipelines int
	Textures  int
	Released  int

	bytes int
}

// NewMemoryDevice creates an empty memory device.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{}
}

// BytesAllocated returns the total size of buffers and textures created.
func (d *MemoryDevice) BytesAllocated() int {
	return d.bytes
}

// Live returns the number of created resources not yet released.
func (d *MemoryDevice) Live() int {
	return d.Buffers + d.Modules + d.Pipelines + d.Textures - d.Released
}

// MemoryBuffer is a buffer created by MemoryDevice.
type MemoryBuffer struct {
	Label string
	Usage BufferUsage
	Data  []byte

	dev      *MemoryDevice
	released bool
}

func (b *MemoryBuffer) Size() int { return len(b.Data) }

func (b *MemoryBuffer) Release() {
	if !b.released {
		b.released = true
		b.dev.Released++
	}
}

// MemoryShaderModule is a shader module created by MemoryDevice.
type MemoryShaderModule struct {
	Label  string
	Source string

	dev      *MemoryDevice
	released bool
}

func (m *MemoryShaderModule) Release() {
	if !m.released {
		m.released = true
		m.dev.Released++
	}
}

// MemoryPipeline is a render pipeline created by MemoryDevice.
type MemoryPipeline struct {
	Label  string
	Module *MemoryShaderModule
	Layout PipelineLayout

	dev      *MemoryDevice
	released bool
}

func (p *MemoryPipeline) Release() {
	if !p.released {
		p.released = true
		p.dev.Released++
	}
}

// MemoryTexture is a texture created by MemoryDevice.
type MemoryTexture struct {
	Label string
	Image *image.RGBA

	dev      *MemoryDevice
	released bool
}

func (t *MemoryTexture) Width() int  { return t.Image.Rect.Dx() }
func (t *MemoryTexture) Height() int { return t.Image.Rect.Dy() }

func (t *MemoryTexture) Release() {
	if !t.released {
		t.released = true
		t.dev.Released++
	}
}

// CreateBuffer copies data into a new buffer.
func (d *MemoryDevice) CreateBuffer(label string, usage BufferUsage, data []byte) (Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("buffer %s: %w", label, ErrEmptyData)
	}
	b := &MemoryBuffer{
		Label: label,
		Usage: usage,
		Data:  append([]byte(nil), data...),
		dev:   d,
	}
	d.Buffers++
	d.bytes += len(data)
	return b, nil
}

// CreateShaderModule stores the source after running ShaderCheck.
func (d *MemoryDevice) CreateShaderModule(label, source string) (ShaderModule, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("shader %s: %w", label, ErrEmptyData)
	}
	if d.ShaderCheck != nil {
		if err := d.ShaderCheck(label, source); err != nil {
			return nil, fmt.Errorf("shader %s: %w", label, err)
		}
	}
	d.Modules++
	return &MemoryShaderModule{Label: label, Source: source, dev: d}, nil
}

// CreateRenderPipeline links a module created by this device.
func (d *MemoryDevice) CreateRenderPipeline(label string, module ShaderModule, layout PipelineLayout) (RenderPipeline, error) {
	m, ok := module.(*MemoryShaderModule)
	if !ok || m.dev != d {
		return nil, fmt.Errorf("pipeline %s: %w", label, ErrForeignHandle)
	}
	if m.released {
		return nil, fmt.Errorf("pipeline %s: %w", label, ErrReleased)
	}
	if len(layout.Buffers) == 0 {
		return nil, fmt.Errorf("pipeline %s: no vertex buffers in layout", label)
	}
	d.Pipelines++
	return &MemoryPipeline{Label: label, Module: m, Layout: layout, dev: d}, nil
}

// CreateTexture copies img into a new texture.
func (d *MemoryDevice) CreateTexture(label string, img *image.RGBA) (Texture, error) {
	if img == nil || img.Rect.Empty() {
		return nil, fmt.Errorf("texture %s: %w", label, ErrEmptyData)
	}
	cp := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	for y := 0; y < cp.Rect.Dy(); y++ {
		src := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		copy(cp.Pix[y*cp.Stride:(y+1)*cp.Stride], src[:cp.Stride])
	}
	d.Textures++
	d.bytes += len(cp.Pix)
	return &MemoryTexture{Label: label, Image: cp, dev: d}, nil
}

// DefaultFragmentSource returns a placeholder fragment stage.
func (d *MemoryDevice) DefaultFragmentSource() string {
	return "// memory device default fragment stage\n"
}
