package gldevice

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/draw"
	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	ClearColor [4]float32
	Wireframe  bool
}

// View is the per-frame camera and light state.
type View struct {
	ViewProj mgl32.Mat4
	Eye      mgl32.Vec3
	LightDir mgl32.Vec3
}

type vaoKey struct {
	mesh     *resource.Mesh
	pipeline *Pipeline
}

// Renderer draws batches with one instanced draw call each.
type Renderer struct {
	config Config
	log    *zap.Logger

	// Instance records are streamed through one buffer.
	instanceVBO  uint32
	instanceSize int

	vaos map[vaoKey]uint32

	// Stats of the last frame.
	DrawCalls int
	Instances int
}

// NewRenderer sets the default GL state. The device must exist already.
func NewRenderer(cfg Config) *Renderer {
	r := &Renderer{
		config: cfg,
		log:    logger.Named("renderer"),
		vaos:   make(map[vaoKey]uint32),
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	c := cfg.ClearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])
	if cfg.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	}
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))

	gl.GenBuffers(1, &r.instanceVBO)
	return r
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	for k, vao := range r.vaos {
		gl.DeleteVertexArrays(1, &vao)
		delete(r.vaos, k)
	}
	if r.instanceVBO != 0 {
		gl.DeleteBuffers(1, &r.instanceVBO)
		r.instanceVBO = 0
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() (pixels []byte, width, height int) {
	width, height = r.config.Width, r.config.Height
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}
	pixels = make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pixels[0]))
	return pixels, width, height
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	r.DrawCalls, r.Instances = 0, 0
}

// Draw issues one instanced draw per batch. Batches whose handles were not
// created by a gldevice.Device are skipped.
func (r *Renderer) Draw(batches []draw.Batch, view View) {
	used := make(map[vaoKey]bool, len(batches))
	for i := range batches {
		b := &batches[i]
		if b.Instances() == 0 {
			continue
		}
		pipeline, ok := b.Shader.Pipeline.(*Pipeline)
		if !ok || pipeline.Program == 0 {
			r.skip(b, "pipeline")
			continue
		}
		vbo, ok1 := b.Mesh.Vertices.(*Buffer)
		ibo, ok2 := b.Mesh.Indices.(*Buffer)
		if !ok1 || !ok2 {
			r.skip(b, "mesh buffers")
			continue
		}

		gl.UseProgram(pipeline.Program)
		gl.UniformMatrix4fv(pipeline.locViewProj, 1, false, &view.ViewProj[0])
		gl.Uniform3fv(pipeline.locEye, 1, &view.Eye[0])
		gl.Uniform3fv(pipeline.locLightDir, 1, &view.LightDir[0])
		r.bindMaterial(pipeline, b.Material)

		r.uploadInstances(b.InstanceData())

		key := vaoKey{mesh: b.Mesh, pipeline: pipeline}
		vao, ok := r.vaos[key]
		if !ok {
			vao = r.createVAO(pipeline.Layout, vbo.ID, ibo.ID)
			r.vaos[key] = vao
		}
		used[key] = true

		gl.BindVertexArray(vao)
		gl.DrawElementsInstanced(gl.TRIANGLES, int32(b.Mesh.IndexCount), gl.UNSIGNED_INT, nil, int32(b.Instances()))
		r.DrawCalls++
		r.Instances += b.Instances()
	}
	gl.BindVertexArray(0)

	// Meshes rebuilt by hot reload or not drawn this frame lose their VAO.
	for k, vao := range r.vaos {
		if !used[k] {
			gl.DeleteVertexArrays(1, &vao)
			delete(r.vaos, k)
		}
	}
}

func (r *Renderer) skip(b *draw.Batch, what string) {
	r.log.Warn("batch skipped, foreign handle",
		zap.String("mesh", b.Descriptor.Name),
		zap.String("handle", what),
	)
}

func (r *Renderer) bindMaterial(p *Pipeline, m *resource.Material) {
	if u, ok := m.Uniform.(*Buffer); ok {
		gl.BindBufferBase(gl.UNIFORM_BUFFER, materialBinding, u.ID)
	}
	gl.ActiveTexture(gl.TEXTURE0 + diffuseUnit)
	if len(m.Maps) > 0 {
		if t, ok := m.Maps[0].(*Texture); ok {
			gl.BindTexture(gl.TEXTURE_2D, t.ID)
		}
	}
	gl.Uniform1i(p.locDiffuse, diffuseUnit)
}

func (r *Renderer) uploadInstances(data []byte) {
	gl.BindBuffer(gl.ARRAY_BUFFER, r.instanceVBO)
	if len(data) > r.instanceSize {
		gl.BufferData(gl.ARRAY_BUFFER, len(data), gl.Ptr(data), gl.STREAM_DRAW)
		r.instanceSize = len(data)
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data), gl.Ptr(data))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

// createVAO binds the mesh buffers and the instance buffer to the
// attribute locations of layout.
func (r *Renderer) createVAO(layout gpu.PipelineLayout, vbo, ibo uint32) uint32 {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)

	for _, buf := range layout.Buffers {
		id := vbo
		var divisor uint32
		if buf.PerInstance {
			id, divisor = r.instanceVBO, 1
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, id)
		for _, a := range buf.Attributes {
			gl.VertexAttribPointer(a.Location, int32(a.Components), gl.FLOAT, false, int32(buf.Stride), gl.PtrOffset(a.Offset))
			gl.EnableVertexAttribArray(a.Location)
			gl.VertexAttribDivisor(a.Location, divisor)
		}
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ibo)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return vao
}
