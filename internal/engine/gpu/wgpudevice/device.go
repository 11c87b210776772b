// Package wgpudevice implements gpu.Device on WebGPU without a surface. It
// is used to validate and bake assets on machines without a window.
package wgpudevice

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/logger"
)

// ColorFormat and DepthFormat are the attachment formats pipelines target.
const (
	ColorFormat = wgpu.TextureFormatRGBA8Unorm
	DepthFormat = wgpu.TextureFormatDepth24Plus
)

// Device wraps a headless WebGPU device.
type Device struct {
	log *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	vertex         *wgpu.ShaderModule
	cameraLayout   *wgpu.BindGroupLayout
	materialLayout *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
}

// New requests an adapter and device. forceFallback selects the software
// adapter where one exists.
func New(forceFallback bool) (*Device, error) {
	d := &Device{
		log:      logger.Named("wgpu"),
		instance: wgpu.CreateInstance(nil),
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallback,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("requesting adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{Label: "rendox"})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("requesting device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.createLayouts(); err != nil {
		d.Close()
		return nil, err
	}

	vs, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "builtin vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: VertexSource},
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("builtin vertex stage: %w", err)
	}
	d.vertex = vs

	d.log.Info("WebGPU device ready", zap.Bool("fallback", forceFallback))
	return d, nil
}

func (d *Device) createLayouts() error {
	camera, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "camera",
		Entries: []wgpu.BindGroupLayoutEntry{
			uniformEntry(0, wgpu.ShaderStageVertex),
		},
	})
	if err != nil {
		return fmt.Errorf("camera layout: %w", err)
	}
	d.cameraLayout = camera

	tex := wgpu.BindGroupLayoutEntry{Binding: 1, Visibility: wgpu.ShaderStageFragment}
	tex.Texture.SampleType = wgpu.TextureSampleTypeFloat
	tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
	smp := wgpu.BindGroupLayoutEntry{Binding: 2, Visibility: wgpu.ShaderStageFragment}
	smp.Sampler.Type = wgpu.SamplerBindingTypeFiltering

	material, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "material",
		Entries: []wgpu.BindGroupLayoutEntry{
			uniformEntry(0, wgpu.ShaderStageFragment),
			tex,
			smp,
		},
	})
	if err != nil {
		return fmt.Errorf("material layout: %w", err)
	}
	d.materialLayout = material

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "standard",
		BindGroupLayouts: []*wgpu.BindGroupLayout{camera, material},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	d.pipelineLayout = pl
	return nil
}

func uniformEntry(binding uint32, stage wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: stage}
	e.Buffer.Type = wgpu.BufferBindingTypeUniform
	return e
}

// Close releases the device and everything it owns.
func (d *Device) Close() {
	if d.vertex != nil {
		d.vertex.Release()
	}
	if d.pipelineLayout != nil {
		d.pipelineLayout.Release()
	}
	if d.materialLayout != nil {
		d.materialLayout.Release()
	}
	if d.cameraLayout != nil {
		d.cameraLayout.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
	*d = Device{log: d.log}
}

// DefaultFragmentSource returns FragmentSource.
func (d *Device) DefaultFragmentSource() string {
	return FragmentSource
}

// Buffer is a WebGPU buffer.
type Buffer struct {
	buf  *wgpu.Buffer
	size int
}

func (b *Buffer) Size() int { return b.size }

func (b *Buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Raw returns the underlying buffer, nil once released.
func (b *Buffer) Raw() *wgpu.Buffer { return b.buf }

func bufferUsage(usage gpu.BufferUsage) wgpu.BufferUsage {
	u := wgpu.BufferUsageCopyDst
	if usage&(gpu.BufferUsageVertex|gpu.BufferUsageInstance) != 0 {
		u |= wgpu.BufferUsageVertex
	}
	if usage&gpu.BufferUsageIndex != 0 {
		u |= wgpu.BufferUsageIndex
	}
	if usage&gpu.BufferUsageUniform != 0 {
		u |= wgpu.BufferUsageUniform
	}
	return u
}

// CreateBuffer creates a buffer initialized with data.
func (d *Device) CreateBuffer(label string, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("buffer %s: %w", label, gpu.ErrEmptyData)
	}
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    bufferUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	return &Buffer{buf: buf, size: len(data)}, nil
}

// ShaderModule is a WGSL fragment stage.
type ShaderModule struct {
	module *wgpu.ShaderModule
}

func (m *ShaderModule) Release() {
	if m.module != nil {
		m.module.Release()
		m.module = nil
	}
}

// CreateShaderModule compiles WGSL source. Its entry point must be fs_main.
func (d *Device) CreateShaderModule(label, source string) (gpu.ShaderModule, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: %w", label, gpu.ErrEmptyData)
	}
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", label, err)
	}
	return &ShaderModule{module: m}, nil
}

// Pipeline is a WebGPU render pipeline.
type Pipeline struct {
	pipeline *wgpu.RenderPipeline
}

func (p *Pipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

// CreateRenderPipeline pairs the built-in vertex stage with module.
func (d *Device) CreateRenderPipeline(label string, module gpu.ShaderModule, layout gpu.PipelineLayout) (gpu.RenderPipeline, error) {
	m, ok := module.(*ShaderModule)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", label, gpu.ErrForeignHandle)
	}
	if m.module == nil {
		return nil, fmt.Errorf("pipeline %s: %w", label, gpu.ErrReleased)
	}
	if len(layout.Buffers) == 0 {
		return nil, fmt.Errorf("pipeline %s: no vertex buffers in layout", label)
	}

	rp, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: d.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     d.vertex,
			EntryPoint: vertexEntry,
			Buffers:    VertexBufferLayouts(layout),
		},
		Fragment: &wgpu.FragmentState{
			Module:     m.module,
			EntryPoint: fragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    ColorFormat,
				Blend:     &wgpu.BlendStateReplace,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", label, err)
	}
	return &Pipeline{pipeline: rp}, nil
}

// VertexBufferLayouts converts layout to WebGPU vertex buffer layouts.
func VertexBufferLayouts(layout gpu.PipelineLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, 0, len(layout.Buffers))
	for _, b := range layout.Buffers {
		step := wgpu.VertexStepModeVertex
		if b.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		attrs := make([]wgpu.VertexAttribute, 0, len(b.Attributes))
		for _, a := range b.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vertexFormat(a.Components),
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			})
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: uint64(b.Stride),
			StepMode:    step,
			Attributes:  attrs,
		})
	}
	return out
}

func vertexFormat(components int) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

// Texture is a sampled RGBA8 texture.
type Texture struct {
	tex           *wgpu.Texture
	width, height int
}

func (t *Texture) Width() int  { return t.width }
func (t *Texture) Height() int { return t.height }

func (t *Texture) Release() {
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

// CreateTexture uploads img through the queue.
func (d *Device) CreateTexture(label string, img *image.RGBA) (gpu.Texture, error) {
	if img == nil || img.Rect.Empty() {
		return nil, fmt.Errorf("texture %s: %w", label, gpu.ErrEmptyData)
	}
	w, h := uint32(img.Rect.Dx()), uint32(img.Rect.Dy())
	size := wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        ColorFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", label, err)
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y):],
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: h,
		},
		&size,
	)
	return &Texture{tex: tex, width: int(w), height: int(h)}, nil
}

var (
	_ gpu.Device         = (*Device)(nil)
	_ gpu.ShaderDefaults = (*Device)(nil)
)
