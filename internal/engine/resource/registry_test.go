package resource

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/rendox/internal/assets"
	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/pkg/objfile"
)

const squareOBJ = `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

const triangleOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

type memSource struct {
	files       map[string][]byte
	loads       map[string]int
	invalidated []string
}

func newMemSource(files map[string]string) *memSource {
	s := &memSource{files: make(map[string][]byte), loads: make(map[string]int)}
	for k, v := range files {
		s.files[k] = []byte(v)
	}
	return s
}

func (s *memSource) Load(path string) ([]byte, error) {
	s.loads[path]++
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return data, nil
}

func (s *memSource) Invalidate(path string) {
	s.invalidated = append(s.invalidated, path)
}

func pngBytes(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.String()
}

func newRegistry(t *testing.T, files map[string]string, opts ...Option) (*Registry, *memSource, *gpu.MemoryDevice) {
	t.Helper()
	src := newMemSource(files)
	reg := New(append([]Option{WithSource(src)}, opts...)...)
	return reg, src, gpu.NewMemoryDevice()
}

func TestNew_DefaultSlots(t *testing.T) {
	reg, _, dev := newRegistry(t, nil)

	s := reg.Stats()
	assert.Equal(t, 1, s.Shaders)
	assert.Equal(t, 1, s.Materials)
	assert.Equal(t, 2, s.Pending)

	require.NoError(t, reg.Refresh(dev))
	s = reg.Stats()
	assert.Zero(t, s.Pending)
	assert.Zero(t, s.Failed)

	shader := reg.shaders[DefaultShader].built
	require.NotNil(t, shader)
	assert.Equal(t, dev.DefaultFragmentSource(), shader.Module.(*gpu.MemoryShaderModule).Source)

	mat := reg.materials[DefaultMaterial].built
	require.NotNil(t, mat)
	assert.Equal(t, DefaultShader, mat.Shader)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, mat.Data.Color)
	require.Len(t, mat.Maps, 1)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, mat.Maps[0].(*gpu.MemoryTexture).Image.RGBAAt(0, 0))
}

func TestNew_Options(t *testing.T) {
	red := NewMaterialDescriptor("red")
	red.Data.Color = mgl32.Vec4{1, 0, 0, 1}
	reg, _, dev := newRegistry(t, nil, WithDefaultShader("custom"), WithDefaultMaterial(red))

	require.NoError(t, reg.Refresh(dev))
	assert.Equal(t, "custom", reg.shaders[DefaultShader].built.Module.(*gpu.MemoryShaderModule).Source)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, reg.materials[DefaultMaterial].built.Data.Color)
}

func TestLoadMesh_CachesByPath(t *testing.T) {
	reg, src, _ := newRegistry(t, map[string]string{
		"square.obj":   squareOBJ,
		"triangle.obj": triangleOBJ,
	})

	a, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)
	b, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)
	c, err := reg.LoadMesh("triangle.obj")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 1, src.loads["square.obj"])
	assert.Equal(t, 2, reg.Stats().Parses)

	geom, ok := reg.Geometry(a)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, geom.Indices)
	assert.Equal(t, "square.obj", geom.Path)
}

func TestLoadMesh_ErrorsAllocateNoSlot(t *testing.T) {
	reg, _, _ := newRegistry(t, map[string]string{
		"bad.obj":    "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 5\n",
		"square.obj": squareOBJ,
	})

	_, err := reg.LoadMesh("bad.obj")
	assert.ErrorIs(t, err, objfile.ErrIndexOutOfRange)
	var perr *objfile.ParseError
	assert.True(t, errors.As(err, &perr))

	_, err = reg.LoadMesh("missing.obj")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Zero(t, reg.Stats().Meshes)
	_, ok := reg.Geometry(0)
	assert.False(t, ok)

	slot, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)
	assert.Equal(t, MeshSlot(0), slot)

	// A failed path is retried, not cached.
	_, err = reg.LoadMesh("bad.obj")
	assert.Error(t, err)
}

func TestRefresh_MaterializesMeshes(t *testing.T) {
	reg, _, dev := newRegistry(t, map[string]string{"square.obj": squareOBJ})

	slot, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)
	md := reg.Descriptor(slot, "square")
	assert.Equal(t, DefaultMaterial, md.Material)

	_, _, _, err = reg.Resolve(md)
	assert.ErrorIs(t, err, ErrNotMaterialized)

	require.NoError(t, reg.Refresh(dev))

	m, mat, sh, err := reg.Resolve(md)
	require.NoError(t, err)
	assert.Equal(t, 6, m.IndexCount)
	assert.Equal(t, m.Geometry.Interleaved(), m.Vertices.(*gpu.MemoryBuffer).Data)
	assert.Equal(t, gpu.BufferUsageIndex, m.Indices.(*gpu.MemoryBuffer).Usage)
	assert.Same(t, reg.materials[DefaultMaterial].built, mat)
	assert.Same(t, reg.shaders[DefaultShader].built, sh)
}

func TestRefresh_Idempotent(t *testing.T) {
	reg, _, dev := newRegistry(t, map[string]string{"square.obj": squareOBJ})
	_, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)

	require.NoError(t, reg.Refresh(dev))
	before := *dev
	require.NoError(t, reg.Refresh(dev))

	assert.Equal(t, before.Buffers, dev.Buffers)
	assert.Equal(t, before.Textures, dev.Textures)
	assert.Equal(t, before.Modules, dev.Modules)
	assert.Equal(t, before.Pipelines, dev.Pipelines)
}

func TestRefresh_EmptyMeshStaysUnmaterialized(t *testing.T) {
	reg, _, dev := newRegistry(t, map[string]string{"empty.obj": "# nothing\n"})

	slot, err := reg.LoadMesh("empty.obj")
	require.NoError(t, err)
	require.NoError(t, reg.Refresh(dev))

	_, err = reg.Mesh(slot)
	assert.ErrorIs(t, err, ErrNotMaterialized)
	assert.Equal(t, 1, reg.Stats().Failed)
}

func TestShaders(t *testing.T) {
	reg, src, dev := newRegistry(t, map[string]string{
		"square.obj": squareOBJ,
		"good.frag":  "good",
		"bad.frag":   "bad",
	})
	dev.ShaderCheck = func(label, source string) error {
		if source == "bad" {
			return errors.New("compile error")
		}
		return nil
	}

	good, err := reg.LoadShader("good.frag")
	require.NoError(t, err)
	again, err := reg.LoadShader("good.frag")
	require.NoError(t, err)
	assert.Equal(t, good, again)
	assert.Equal(t, 1, src.loads["good.frag"])

	bad, err := reg.LoadShader("bad.frag")
	require.NoError(t, err)

	_, err = reg.LoadShader("missing.frag")
	assert.Error(t, err)
	assert.Equal(t, 3, reg.Stats().Shaders)

	meshSlot, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)
	require.NoError(t, reg.Refresh(dev))

	assert.Equal(t, 1, reg.Stats().Failed)

	md := reg.Descriptor(meshSlot, "square")
	require.True(t, reg.BindShader(&md, good))
	_, _, sh, err := reg.Resolve(md)
	require.NoError(t, err)
	assert.Equal(t, "good.frag", sh.Path)

	require.True(t, reg.BindShader(&md, bad))
	_, _, _, err = reg.Resolve(md)
	assert.ErrorIs(t, err, ErrNotMaterialized)

	assert.False(t, reg.BindShader(&md, ShaderSlot(99)))
	slot, ok := md.Shader()
	assert.True(t, ok)
	assert.Equal(t, bad, slot)
}

func TestMaterials(t *testing.T) {
	reg, _, dev := newRegistry(t, map[string]string{
		"square.obj":       squareOBJ,
		"textures/a.png":   pngBytes(t, 2, 2, color.RGBA{0, 128, 255, 255}),
		"textures/bad.png": "garbage",
		"shaders/lit.frag": "lit",
	})

	textured := NewMaterialDescriptor("textured")
	textured.Maps = []string{"textures/a.png"}
	textured.Shader = "shaders/lit.frag"

	broken := NewMaterialDescriptor("broken")
	broken.Maps = []string{"textures/missing.png", "textures/bad.png"}
	broken.Shader = "shaders/missing.frag"

	tSlot := reg.LoadMaterial(textured)
	bSlot := reg.LoadMaterial(broken)
	assert.Equal(t, MaterialSlot(1), tSlot)
	assert.Equal(t, MaterialSlot(2), bSlot)

	// Shaders referenced by materials are loaded at build time.
	assert.Equal(t, 1, reg.Stats().Shaders)
	require.NoError(t, reg.Refresh(dev))
	assert.Equal(t, 2, reg.Stats().Shaders)

	meshSlot, err := reg.LoadMesh("square.obj")
	require.NoError(t, err)
	require.NoError(t, reg.Refresh(dev))

	md := reg.Descriptor(meshSlot, "square")
	require.True(t, reg.BindMaterial(&md, tSlot))
	_, mat, sh, err := reg.Resolve(md)
	require.NoError(t, err)
	assert.Equal(t, "textured", mat.Name)
	assert.Equal(t, "shaders/lit.frag", sh.Path)
	require.Len(t, mat.Maps, 1)
	assert.Equal(t, color.RGBA{0, 128, 255, 255}, mat.Maps[0].(*gpu.MemoryTexture).Image.RGBAAt(1, 1))
	assert.Equal(t, textured.Data.Bytes(), mat.Uniform.(*gpu.MemoryBuffer).Data)

	require.True(t, reg.BindMaterial(&md, bSlot))
	_, mat, sh, err = reg.Resolve(md)
	require.NoError(t, err)
	assert.Equal(t, DefaultShader, mat.Shader)
	assert.Equal(t, "", sh.Path)
	require.Len(t, mat.Maps, 2)
	for _, tex := range mat.Maps {
		assert.Equal(t, color.RGBA{0, 0, 0, 255}, tex.(*gpu.MemoryTexture).Image.RGBAAt(0, 0))
	}

	assert.False(t, reg.BindMaterial(&md, MaterialSlot(42)))
	assert.Equal(t, bSlot, md.Material)

	slot, ok := reg.MaterialByName("textured")
	assert.True(t, ok)
	assert.Equal(t, tSlot, slot)
}

func TestMaterialData_Bytes(t *testing.T) {
	d := DefaultMaterialData()
	b := d.Bytes()
	require.Len(t, b, MaterialDataSize)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 0.5}, d.Specular)
}

func TestMaxTextureSize(t *testing.T) {
	reg, _, dev := newRegistry(t, map[string]string{
		"big.png": pngBytes(t, 64, 16, color.RGBA{9, 9, 9, 255}),
	}, WithMaxTextureSize(32))

	desc := NewMaterialDescriptor("big")
	desc.Maps = []string{"big.png"}
	slot := reg.LoadMaterial(desc)
	require.NoError(t, reg.Refresh(dev))

	tex := reg.materials[slot].built.Maps[0]
	assert.Equal(t, 32, tex.Width())
	assert.Equal(t, 8, tex.Height())
}

func TestReentrancy(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg, _, dev := newRegistry(t, map[string]string{"square.obj": squareOBJ}, WithLogger(zap.New(core)))

	var (
		material MaterialSlot
		bound    bool
		meshErr  error
		nested   error
	)
	md := reg.Descriptor(0, "square")
	dev.ShaderCheck = func(label, source string) error {
		material = reg.LoadMaterial(NewMaterialDescriptor("late"))
		bound = reg.BindMaterial(&md, DefaultMaterial)
		_, meshErr = reg.LoadMesh("square.obj")
		nested = reg.Refresh(dev)
		return nil
	}

	require.NoError(t, reg.Refresh(dev))

	assert.Equal(t, InvalidMaterial, material)
	assert.False(t, bound)
	assert.ErrorIs(t, meshErr, ErrBusy)
	assert.ErrorIs(t, nested, ErrBusy)
	assert.Equal(t, 4, logs.FilterMessage("registry busy, operation skipped").Len())

	// The outer refresh was not disturbed.
	assert.NotNil(t, reg.shaders[DefaultShader].built)
	assert.Equal(t, 1, reg.Stats().Materials)
	assert.Zero(t, reg.Stats().Meshes)
}

func TestHotReload(t *testing.T) {
	reg, src, dev := newRegistry(t, map[string]string{
		"mesh.obj":   triangleOBJ,
		"flat.frag":  "v1",
		"albedo.png": pngBytes(t, 1, 1, color.RGBA{255, 0, 0, 255}),
	})
	dev.ShaderCheck = func(label, source string) error {
		if source == "broken" {
			return errors.New("compile error")
		}
		return nil
	}

	meshSlot, err := reg.LoadMesh("mesh.obj")
	require.NoError(t, err)
	shaderSlot, err := reg.LoadShader("flat.frag")
	require.NoError(t, err)
	desc := NewMaterialDescriptor("albedo")
	desc.Maps = []string{"albedo.png"}
	matSlot := reg.LoadMaterial(desc)
	require.NoError(t, reg.Refresh(dev))

	assert.Equal(t, []string{"albedo.png", "flat.frag", "mesh.obj"}, reg.SourcePaths())

	src.files["mesh.obj"] = []byte(squareOBJ)
	src.files["flat.frag"] = []byte("broken")
	src.files["albedo.png"] = []byte(pngBytes(t, 1, 1, color.RGBA{0, 255, 0, 255}))
	reg.NotifyChanged("mesh.obj")
	reg.NotifyChanged("mesh.obj")
	reg.NotifyChanged("flat.frag")
	reg.NotifyChanged("albedo.png")

	oldShader := reg.shaders[shaderSlot].built
	require.NoError(t, reg.Refresh(dev))

	assert.ElementsMatch(t, []string{"mesh.obj", "flat.frag", "albedo.png"}, src.invalidated)

	m, err := reg.Mesh(meshSlot)
	require.NoError(t, err)
	assert.Equal(t, 6, m.IndexCount)

	// The broken shader keeps serving its last good build.
	assert.Same(t, oldShader, reg.shaders[shaderSlot].built)
	assert.Error(t, reg.shaders[shaderSlot].err)

	tex := reg.materials[matSlot].built.Maps[0].(*gpu.MemoryTexture)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, tex.Image.RGBAAt(0, 0))

	assert.Equal(t, 3, reg.Stats().Reloads)
	assert.Equal(t, 2, reg.Stats().Parses)

	// A reload that fails to parse keeps the mesh.
	src.files["mesh.obj"] = []byte("garbage line\n")
	reg.NotifyChanged("mesh.obj")
	require.NoError(t, reg.Refresh(dev))
	m, err = reg.Mesh(meshSlot)
	require.NoError(t, err)
	assert.Equal(t, 6, m.IndexCount)
}

func TestNotifyChanged_DropsWhenFull(t *testing.T) {
	reg, _, _ := newRegistry(t, nil)
	for i := 0; i < changeQueueSize+10; i++ {
		reg.NotifyChanged(fmt.Sprintf("file%d", i))
	}
	assert.Len(t, reg.changes, changeQueueSize)
}

func TestManifest(t *testing.T) {
	manifest := `
materials:
  - name: brick
    color: [1, 0.5, 0.25, 1]
    maps: [textures/brick.png]
    shader: shaders/lit.frag
  - name: plain
`
	reg, _, _ := newRegistry(t, map[string]string{
		"materials.yaml": manifest,
		"nameless.yaml":  "materials:\n  - color: [1, 1, 1, 1]\n",
		"dupes.yaml":     "materials:\n  - name: a\n  - name: a\n",
		"broken.yaml":    "materials: [",
	})

	slots, err := reg.LoadMaterialManifest("materials.yaml")
	require.NoError(t, err)
	require.Len(t, slots, 2)

	brick := reg.materials[slots["brick"]].desc
	assert.Equal(t, mgl32.Vec4{1, 0.5, 0.25, 1}, brick.Data.Color)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 0.5}, brick.Data.Specular)
	assert.Equal(t, []string{"textures/brick.png"}, brick.Maps)
	assert.Equal(t, "shaders/lit.frag", brick.Shader)

	plain := reg.materials[slots["plain"]].desc
	assert.Equal(t, DefaultMaterialData(), plain.Data)

	for _, path := range []string{"nameless.yaml", "dupes.yaml", "broken.yaml", "missing.yaml"} {
		_, err := reg.LoadMaterialManifest(path)
		assert.Error(t, err, path)
	}
	_, err = reg.LoadMaterialManifest("dupes.yaml")
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.Equal(t, 3, reg.Stats().Materials)
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.obj")
	require.NoError(t, os.WriteFile(path, []byte(triangleOBJ), 0644))

	manager := assets.NewManager()
	require.NoError(t, manager.AddRoot(dir))
	reg := New(WithSource(manager))

	_, err := reg.LoadMesh("mesh.obj")
	require.NoError(t, err)

	w, err := NewWatcher(reg, manager, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Sync())

	require.NoError(t, os.WriteFile(path, []byte(squareOBJ), 0644))

	select {
	case changed := <-reg.changes:
		assert.Equal(t, "mesh.obj", changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	assert.Error(t, w.Watch("missing.obj"))
}
