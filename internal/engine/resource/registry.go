// Package resource owns meshes, materials and shaders behind stable slots.
//
// Loading is two-phase. LoadMesh, LoadShader and LoadMaterial register a
// resource and return its slot immediately; Refresh, run once per frame on
// the render thread, builds the GPU side of everything still pending. A slot
// is visible to Resolve only once its build has fully succeeded.
//
// Every public method try-acquires the registry. A call made while another
// registry call is in progress on the same thread (for example from a device
// callback during Refresh) does not block: it fails with ErrBusy, false or
// InvalidMaterial and logs a warning.
package resource

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/assets"
	"github.com/Faultbox/rendox/internal/engine/guard"
	"github.com/Faultbox/rendox/internal/logger"
	"github.com/Faultbox/rendox/pkg/mesh"
	"github.com/Faultbox/rendox/pkg/objfile"
)

// Source reads asset files by path.
type Source interface {
	Load(path string) ([]byte, error)
}

// Invalidator is implemented by caching sources so hot reload can force a
// fresh read.
type Invalidator interface {
	Invalidate(path string)
}

const changeQueueSize = 64

// Option configures a Registry.
type Option func(*Registry)

// WithSource sets where asset files are read from. The default is an
// assets.Manager resolving against the working directory.
func WithSource(src Source) Option {
	return func(r *Registry) { r.source = src }
}

// WithDefaultShader sets the fragment source of DefaultShader. Without it
// the device's built-in fragment stage is used.
func WithDefaultShader(src string) Option {
	return func(r *Registry) { r.shaders[DefaultShader].source = src }
}

// WithDefaultMaterial replaces the descriptor of DefaultMaterial.
func WithDefaultMaterial(desc MaterialDescriptor) Option {
	return func(r *Registry) { r.materials[DefaultMaterial].desc = desc }
}

// WithMaxTextureSize scales material textures down to at most size pixels
// per side. Zero disables the limit.
func WithMaxTextureSize(size int) Option {
	return func(r *Registry) { r.maxTextureSize = size }
}

// WithLogger sets the logger. The default is the "resource" child of the
// global logger at construction time.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// Registry holds the mesh, material and shader tables.
type Registry struct {
	source         Source
	log            *zap.Logger
	busy           guard.Flag
	maxTextureSize int

	meshes     []meshEntry
	meshByPath map[string]MeshSlot

	shaders      []shaderEntry
	shaderByPath map[string]ShaderSlot

	materials      []materialEntry
	materialByName map[string]MaterialSlot

	changes chan string

	parses  int
	reloads int
}

// New creates a registry holding DefaultShader and DefaultMaterial, both
// pending until the first Refresh.
func New(opts ...Option) *Registry {
	r := &Registry{
		meshByPath:     make(map[string]MeshSlot),
		shaderByPath:   make(map[string]ShaderSlot),
		materialByName: make(map[string]MaterialSlot),
		changes:        make(chan string, changeQueueSize),
	}
	r.shaders = append(r.shaders, shaderEntry{dirty: true})
	r.materials = append(r.materials, materialEntry{
		desc:  NewMaterialDescriptor("default"),
		dirty: true,
	})

	for _, opt := range opts {
		opt(r)
	}
	if r.source == nil {
		r.source = assets.NewManager()
	}
	if r.log == nil {
		r.log = logger.Named("resource")
	}
	return r
}

func (r *Registry) acquire(op string) bool {
	if r.busy.TryAcquire() {
		return true
	}
	r.log.Warn("registry busy, operation skipped", zap.String("op", op))
	return false
}

func (r *Registry) release() {
	r.busy.Release()
}

// LoadMesh parses and solves the mesh at path and registers it for upload.
// A path that is already registered returns its slot without re-reading.
// Read and parse errors allocate no slot.
func (r *Registry) LoadMesh(path string) (MeshSlot, error) {
	if !r.acquire("LoadMesh") {
		return 0, ErrBusy
	}
	defer r.release()

	if slot, ok := r.meshByPath[path]; ok {
		return slot, nil
	}

	geom, err := r.readMesh(path)
	if err != nil {
		return 0, err
	}

	slot := MeshSlot(len(r.meshes))
	r.meshes = append(r.meshes, meshEntry{path: path, geom: geom, dirty: true})
	r.meshByPath[path] = slot

	r.log.Debug("mesh registered",
		zap.String("path", path),
		zap.Uint32("slot", uint32(slot)),
		zap.Int("vertices", geom.VertexCount()),
		zap.Int("triangles", geom.TriangleCount()),
	)
	return slot, nil
}

func (r *Registry) readMesh(path string) (*mesh.Geometry, error) {
	data, err := r.source.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading mesh %s: %w", path, err)
	}
	r.parses++
	obj, err := objfile.ParseOBJ(data)
	if err != nil {
		return nil, fmt.Errorf("parsing mesh %s: %w", path, err)
	}
	return mesh.Build(obj, path), nil
}

// LoadShader reads fragment shader source and registers it for building.
// A path that is already registered returns its slot.
func (r *Registry) LoadShader(path string) (ShaderSlot, error) {
	if !r.acquire("LoadShader") {
		return 0, ErrBusy
	}
	defer r.release()
	return r.loadShader(path)
}

func (r *Registry) loadShader(path string) (ShaderSlot, error) {
	if slot, ok := r.shaderByPath[path]; ok {
		return slot, nil
	}

	data, err := r.source.Load(path)
	if err != nil {
		return 0, fmt.Errorf("loading shader %s: %w", path, err)
	}

	slot := ShaderSlot(len(r.shaders))
	r.shaders = append(r.shaders, shaderEntry{path: path, source: string(data), dirty: true})
	r.shaderByPath[path] = slot

	r.log.Debug("shader registered", zap.String("path", path), zap.Uint32("slot", uint32(slot)))
	return slot, nil
}

// LoadMaterial registers a material. It always allocates a new slot unless
// the registry is busy, in which case InvalidMaterial is returned.
// Texture and shader problems surface at Refresh.
func (r *Registry) LoadMaterial(desc MaterialDescriptor) MaterialSlot {
	if !r.acquire("LoadMaterial") {
		return InvalidMaterial
	}
	defer r.release()
	return r.loadMaterial(desc)
}

func (r *Registry) loadMaterial(desc MaterialDescriptor) MaterialSlot {
	desc.Maps = append([]string(nil), desc.Maps...)

	slot := MaterialSlot(len(r.materials))
	r.materials = append(r.materials, materialEntry{desc: desc, dirty: true})
	if desc.Name != "" {
		r.materialByName[desc.Name] = slot
	}
	return slot
}

// MaterialByName returns the most recently registered material with name.
func (r *Registry) MaterialByName(name string) (MaterialSlot, bool) {
	if !r.acquire("MaterialByName") {
		return InvalidMaterial, false
	}
	defer r.release()

	slot, ok := r.materialByName[name]
	return slot, ok
}

// Descriptor returns a descriptor drawing mesh with DefaultMaterial.
func (r *Registry) Descriptor(mesh MeshSlot, name string) MeshDescriptor {
	return MeshDescriptor{Mesh: mesh, Material: DefaultMaterial, Name: name}
}

// BindMaterial points md at another material. It fails only for an
// unknown slot or a busy registry.
func (r *Registry) BindMaterial(md *MeshDescriptor, slot MaterialSlot) bool {
	if !r.acquire("BindMaterial") {
		return false
	}
	defer r.release()

	if int(slot) >= len(r.materials) {
		r.log.Warn("bind to unknown material", zap.String("mesh", md.Name), zap.Uint32("slot", uint32(slot)))
		return false
	}
	md.Material = slot
	return true
}

// BindShader overrides the material's shader for md.
func (r *Registry) BindShader(md *MeshDescriptor, slot ShaderSlot) bool {
	if !r.acquire("BindShader") {
		return false
	}
	defer r.release()

	if int(slot) >= len(r.shaders) {
		r.log.Warn("bind to unknown shader", zap.String("mesh", md.Name), zap.Uint32("slot", uint32(slot)))
		return false
	}
	md.shader = slot
	md.hasShader = true
	return true
}

// Resolve returns the materialized resources md draws with. The shader is
// the descriptor's override if bound, else the material's shader.
func (r *Registry) Resolve(md MeshDescriptor) (*Mesh, *Material, *Shader, error) {
	if !r.acquire("Resolve") {
		return nil, nil, nil, ErrBusy
	}
	defer r.release()

	m, err := r.mesh(md.Mesh)
	if err != nil {
		return nil, nil, nil, err
	}

	if int(md.Material) >= len(r.materials) {
		return nil, nil, nil, fmt.Errorf("material %d: %w", md.Material, ErrUnknownSlot)
	}
	mat := r.materials[md.Material].built
	if mat == nil {
		return nil, nil, nil, fmt.Errorf("material %d: %w", md.Material, ErrNotMaterialized)
	}

	slot := mat.Shader
	if s, ok := md.Shader(); ok {
		slot = s
	}
	if int(slot) >= len(r.shaders) {
		return nil, nil, nil, fmt.Errorf("shader %d: %w", slot, ErrUnknownSlot)
	}
	sh := r.shaders[slot].built
	if sh == nil {
		return nil, nil, nil, fmt.Errorf("shader %d: %w", slot, ErrNotMaterialized)
	}
	return m, mat, sh, nil
}

// Mesh returns the materialized mesh in slot.
func (r *Registry) Mesh(slot MeshSlot) (*Mesh, error) {
	if !r.acquire("Mesh") {
		return nil, ErrBusy
	}
	defer r.release()
	return r.mesh(slot)
}

func (r *Registry) mesh(slot MeshSlot) (*Mesh, error) {
	if int(slot) >= len(r.meshes) {
		return nil, fmt.Errorf("mesh %d: %w", slot, ErrUnknownSlot)
	}
	m := r.meshes[slot].built
	if m == nil {
		return nil, fmt.Errorf("mesh %d: %w", slot, ErrNotMaterialized)
	}
	return m, nil
}

// Geometry returns the CPU-side geometry of slot, materialized or not.
func (r *Registry) Geometry(slot MeshSlot) (*mesh.Geometry, bool) {
	if !r.acquire("Geometry") {
		return nil, false
	}
	defer r.release()

	if int(slot) >= len(r.meshes) {
		return nil, false
	}
	return r.meshes[slot].geom, true
}

// Stats summarizes the registry tables.
type Stats struct {
	Meshes    int
	Materials int
	Shaders   int

	Pending int // registered, not yet built
	Failed  int // build attempted and failed, nothing usable
	Parses  int // mesh sources parsed, including reloads
	Reloads int // hot reloads applied
}

// Stats returns table counts.
func (r *Registry) Stats() Stats {
	if !r.acquire("Stats") {
		return Stats{}
	}
	defer r.release()

	s := Stats{
		Meshes:    len(r.meshes),
		Materials: len(r.materials),
		Shaders:   len(r.shaders),
		Parses:    r.parses,
		Reloads:   r.reloads,
	}
	count := func(dirty, built bool, err error) {
		switch {
		case dirty:
			s.Pending++
		case !built && err != nil:
			s.Failed++
		}
	}
	for _, e := range r.meshes {
		count(e.dirty, e.built != nil, e.err)
	}
	for _, e := range r.materials {
		count(e.dirty, e.built != nil, e.err)
	}
	for _, e := range r.shaders {
		count(e.dirty, e.built != nil, e.err)
	}
	return s
}

// SourcePaths lists every file the registry has read, sorted.
func (r *Registry) SourcePaths() []string {
	if !r.acquire("SourcePaths") {
		return nil
	}
	defer r.release()

	seen := make(map[string]bool)
	for path := range r.meshByPath {
		seen[path] = true
	}
	for path := range r.shaderByPath {
		seen[path] = true
	}
	for _, e := range r.materials {
		for _, path := range e.desc.Maps {
			seen[path] = true
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// NotifyChanged queues path for reload at the next Refresh. It is safe to
// call from any goroutine and never blocks; when the queue is full the
// notification is dropped.
func (r *Registry) NotifyChanged(path string) {
	select {
	case r.changes <- path:
	default:
		r.log.Warn("change queue full, reload dropped", zap.String("path", path))
	}
}
