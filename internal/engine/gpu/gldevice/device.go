// Package gldevice implements gpu.Device on OpenGL 4.1 core and renders
// draw batches with instanced draw calls.
//
// Everything here must run on the thread that owns the GL context.
package gldevice

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/logger"
)

// Device creates GL objects. Create it after the GL context is current.
type Device struct {
	log        *zap.Logger
	vertex     uint32
	Version    string
	RendererID string
}

// New initializes the GL bindings and compiles the built-in vertex stage.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	d := &Device{
		log:        logger.Named("gl"),
		Version:    gl.GoStr(gl.GetString(gl.VERSION)),
		RendererID: gl.GoStr(gl.GetString(gl.RENDERER)),
	}
	d.log.Info("OpenGL initialized",
		zap.String("version", d.Version),
		zap.String("renderer", d.RendererID),
	)

	vert, err := compileShader(VertexSource, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return nil, err
	}
	d.vertex = vert
	return d, nil
}

// Close deletes the built-in vertex stage.
func (d *Device) Close() {
	if d.vertex != 0 {
		gl.DeleteShader(d.vertex)
		d.vertex = 0
	}
}

// DefaultFragmentSource returns FragmentSource.
func (d *Device) DefaultFragmentSource() string {
	return FragmentSource
}

// Buffer is a GL buffer object.
type Buffer struct {
	ID     uint32
	Target uint32
	Usage  gpu.BufferUsage
	size   int
}

func (b *Buffer) Size() int { return b.size }

func (b *Buffer) Release() {
	if b.ID != 0 {
		gl.DeleteBuffers(1, &b.ID)
		b.ID = 0
	}
}

func bufferTarget(usage gpu.BufferUsage) uint32 {
	switch {
	case usage&gpu.BufferUsageIndex != 0:
		return gl.ELEMENT_ARRAY_BUFFER
	case usage&gpu.BufferUsageUniform != 0:
		return gl.UNIFORM_BUFFER
	default:
		return gl.ARRAY_BUFFER
	}
}

// CreateBuffer uploads data into a new static buffer.
func (d *Device) CreateBuffer(label string, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("buffer %s: %w", label, gpu.ErrEmptyData)
	}

	b := &Buffer{Target: bufferTarget(usage), Usage: usage, size: len(data)}
	gl.GenBuffers(1, &b.ID)
	gl.BindBuffer(b.Target, b.ID)
	gl.BufferData(b.Target, len(data), gl.Ptr(data), gl.STATIC_DRAW)
	gl.BindBuffer(b.Target, 0)

	d.log.Debug("buffer created",
		zap.String("label", label),
		zap.Stringer("usage", usage),
		zap.Int("bytes", len(data)),
	)
	return b, nil
}

// ShaderModule is a compiled fragment shader.
type ShaderModule struct {
	ID uint32
}

func (m *ShaderModule) Release() {
	if m.ID != 0 {
		gl.DeleteShader(m.ID)
		m.ID = 0
	}
}

// CreateShaderModule compiles source as a fragment stage.
func (d *Device) CreateShaderModule(label, source string) (gpu.ShaderModule, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: %w", label, gpu.ErrEmptyData)
	}
	id, err := compileShader(source, gl.FRAGMENT_SHADER, label)
	if err != nil {
		return nil, err
	}
	return &ShaderModule{ID: id}, nil
}

// Pipeline is a linked program together with the buffer layout it reads.
type Pipeline struct {
	Program uint32
	Layout  gpu.PipelineLayout

	locViewProj int32
	locDiffuse  int32
	locLightDir int32
	locEye      int32
}

func (p *Pipeline) Release() {
	if p.Program != 0 {
		gl.DeleteProgram(p.Program)
		p.Program = 0
	}
}

// CreateRenderPipeline links the built-in vertex stage with module.
func (d *Device) CreateRenderPipeline(label string, module gpu.ShaderModule, layout gpu.PipelineLayout) (gpu.RenderPipeline, error) {
	m, ok := module.(*ShaderModule)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w", label, gpu.ErrForeignHandle)
	}
	if m.ID == 0 {
		return nil, fmt.Errorf("pipeline %s: %w", label, gpu.ErrReleased)
	}
	if len(layout.Buffers) == 0 {
		return nil, fmt.Errorf("pipeline %s: no vertex buffers in layout", label)
	}

	program, err := linkProgram(d.vertex, m.ID)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", label, err)
	}
	bindMaterialBlock(program)

	p := &Pipeline{
		Program:     program,
		Layout:      layout,
		locViewProj: uniform(program, "uViewProj"),
		locDiffuse:  uniform(program, "uDiffuse"),
		locLightDir: uniform(program, "uLightDir"),
		locEye:      uniform(program, "uEye"),
	}
	d.log.Debug("pipeline linked", zap.String("label", label), zap.Uint32("program", program))
	return p, nil
}

// Texture is a GL 2D texture with mipmaps.
type Texture struct {
	ID     uint32
	width  int
	height int
}

func (t *Texture) Width() int  { return t.width }
func (t *Texture) Height() int { return t.height }

func (t *Texture) Release() {
	if t.ID != 0 {
		gl.DeleteTextures(1, &t.ID)
		t.ID = 0
	}
}

// CreateTexture uploads img as an RGBA8 texture.
func (d *Device) CreateTexture(label string, img *image.RGBA) (gpu.Texture, error) {
	if img == nil || img.Rect.Empty() {
		return nil, fmt.Errorf("texture %s: %w", label, gpu.ErrEmptyData)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride != 4*w || img.Rect.Min != (image.Point{}) {
		cp := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			copy(cp.Pix[y*cp.Stride:(y+1)*cp.Stride], img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):])
		}
		img = cp
	}

	t := &Texture{width: w, height: h}
	gl.GenTextures(1, &t.ID)
	gl.BindTexture(gl.TEXTURE_2D, t.ID)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	d.log.Debug("texture created", zap.String("label", label), zap.Int("width", w), zap.Int("height", h))
	return t, nil
}

var (
	_ gpu.Device         = (*Device)(nil)
	_ gpu.ShaderDefaults = (*Device)(nil)
)
