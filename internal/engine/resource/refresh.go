package resource

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/pkg/mesh"
)

// Mesh is a materialized mesh.
type Mesh struct {
	Path       string
	Geometry   *mesh.Geometry
	Vertices   gpu.Buffer
	Indices    gpu.Buffer
	IndexCount int
}

func (m *Mesh) release() {
	m.Vertices.Release()
	m.Indices.Release()
}

type meshEntry struct {
	path  string
	geom  *mesh.Geometry
	dirty bool
	built *Mesh
	err   error
}

// Shader is a materialized shader.
type Shader struct {
	Path     string
	Module   gpu.ShaderModule
	Pipeline gpu.RenderPipeline
}

func (s *Shader) release() {
	s.Pipeline.Release()
	s.Module.Release()
}

type shaderEntry struct {
	path   string
	source string
	dirty  bool
	built  *Shader
	err    error
}

// Refresh builds every pending resource on dev: hot-reload notifications
// are applied first, then materials (which may register shaders), then
// shaders, then mesh uploads. A failed build is logged and leaves the slot
// without a usable resource; a failed rebuild keeps the previous one.
// Entries already built are skipped, so calling Refresh twice is harmless.
func (r *Registry) Refresh(dev gpu.Device) error {
	if !r.acquire("Refresh") {
		return ErrBusy
	}
	defer r.release()

	r.applyChanges()

	for i := range r.materials {
		e := &r.materials[i]
		if !e.dirty {
			continue
		}
		e.dirty = false
		m, err := r.buildMaterial(dev, MaterialSlot(i), e.desc)
		if err != nil {
			e.err = err
			r.log.Error("material build failed", zap.Int("slot", i), zap.Error(err))
			continue
		}
		if e.built != nil {
			e.built.release()
		}
		e.built, e.err = m, nil
	}

	if r.shaders[DefaultShader].source == "" {
		r.shaders[DefaultShader].source = gpu.DefaultFragmentSource(dev)
	}
	for i := range r.shaders {
		e := &r.shaders[i]
		if !e.dirty {
			continue
		}
		e.dirty = false
		s, err := buildShader(dev, e.path, e.source)
		if err != nil {
			e.err = err
			r.log.Error("shader build failed", zap.String("path", e.path), zap.Error(err))
			continue
		}
		if e.built != nil {
			e.built.release()
		}
		e.built, e.err = s, nil
	}

	for i := range r.meshes {
		e := &r.meshes[i]
		if !e.dirty {
			continue
		}
		e.dirty = false
		m, err := uploadMesh(dev, e.path, e.geom)
		if err != nil {
			e.err = err
			r.log.Error("mesh upload failed", zap.String("path", e.path), zap.Error(err))
			continue
		}
		if e.built != nil {
			e.built.release()
		}
		e.built, e.err = m, nil
	}
	return nil
}

func buildShader(dev gpu.Device, path, source string) (*Shader, error) {
	label := path
	if label == "" {
		label = "default"
	}
	module, err := dev.CreateShaderModule(label, source)
	if err != nil {
		return nil, err
	}
	pipeline, err := dev.CreateRenderPipeline(label, module, gpu.StandardLayout)
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("pipeline %s: %w", label, err)
	}
	return &Shader{Path: path, Module: module, Pipeline: pipeline}, nil
}

func uploadMesh(dev gpu.Device, path string, geom *mesh.Geometry) (*Mesh, error) {
	vb, err := dev.CreateBuffer(path+" vertices", gpu.BufferUsageVertex, geom.Interleaved())
	if err != nil {
		return nil, err
	}
	ib, err := dev.CreateBuffer(path+" indices", gpu.BufferUsageIndex, geom.IndexData())
	if err != nil {
		vb.Release()
		return nil, err
	}
	return &Mesh{
		Path:       path,
		Geometry:   geom,
		Vertices:   vb,
		Indices:    ib,
		IndexCount: len(geom.Indices),
	}, nil
}

// applyChanges drains the hot-reload queue. Each changed path is re-read
// once; new sources are marked dirty and rebuilt later in the same Refresh.
func (r *Registry) applyChanges() {
	var paths []string
drain:
	for {
		select {
		case p := <-r.changes:
			if !slices.Contains(paths, p) {
				paths = append(paths, p)
			}
		default:
			break drain
		}
	}

	for _, path := range paths {
		if inv, ok := r.source.(Invalidator); ok {
			inv.Invalidate(path)
		}
		r.reload(path)
	}
}

func (r *Registry) reload(path string) {
	if slot, ok := r.meshByPath[path]; ok {
		geom, err := r.readMesh(path)
		if err != nil {
			r.log.Warn("mesh reload failed, keeping previous", zap.String("path", path), zap.Error(err))
		} else {
			e := &r.meshes[slot]
			e.geom, e.dirty = geom, true
			r.reloads++
			r.log.Info("mesh reloaded", zap.String("path", path))
		}
	}

	if slot, ok := r.shaderByPath[path]; ok {
		data, err := r.source.Load(path)
		if err != nil {
			r.log.Warn("shader reload failed, keeping previous", zap.String("path", path), zap.Error(err))
		} else {
			e := &r.shaders[slot]
			e.source, e.dirty = string(data), true
			r.reloads++
			r.log.Info("shader reloaded", zap.String("path", path))
		}
	}

	for i := range r.materials {
		e := &r.materials[i]
		if slices.Contains(e.desc.Maps, path) {
			e.dirty = true
			r.reloads++
			r.log.Info("material texture reloaded", zap.String("path", path), zap.String("material", e.desc.Name))
		}
	}
}
