package viewer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/assets"
	"github.com/Faultbox/rendox/internal/config"
	"github.com/Faultbox/rendox/internal/engine/draw"
	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/engine/picking"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/engine/scene"
	"github.com/Faultbox/rendox/pkg/mesh"
)

const quadOBJ = `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`

const manifest = `materials:
  - name: quad
    color: [1, 0, 0, 1]
  - name: unused
`

func newTestScene(t *testing.T, files map[string]string) *scene.Scene {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	src := assets.NewManager()
	require.NoError(t, src.AddRoot(dir))
	return scene.New(resource.New(resource.WithSource(src)), draw.NewQueue())
}

func TestGrid(t *testing.T) {
	assert.Nil(t, Grid(0, 1))
	assert.Equal(t, []mgl32.Vec3{{0, 0, 0}}, Grid(1, 5))
	assert.Equal(t, []mgl32.Vec3{{-1, 0, -1}, {1, 0, -1}, {-1, 0, 1}, {1, 0, 1}}, Grid(4, 2))
	assert.Equal(t, []mgl32.Vec3{{-0.5, 0, -0.5}, {0.5, 0, -0.5}, {-0.5, 0, 0.5}}, Grid(3, 1))
}

func TestPlacements_RowPerModel(t *testing.T) {
	cfg := config.SceneConfig{Instances: 1, Spacing: 2}
	small := model{}
	big := model{bounds: mesh.Bounds{Max: mgl32.Vec3{3, 4, 0}}}

	assert.Equal(t, []mgl32.Vec3{{0, 0, 0}}, placements(0, small, cfg))
	assert.Equal(t, []mgl32.Vec3{{0, 0, -2}}, placements(1, small, cfg))
	// Cells grow with the mesh diagonal.
	assert.Equal(t, []mgl32.Vec3{{0, 0, -20}}, placements(2, big, cfg))
}

func TestExtent(t *testing.T) {
	cfg := config.SceneConfig{Instances: 1, Spacing: 1}

	c := &content{}
	_, ok := c.extent(cfg)
	assert.False(t, ok)

	c.models = []model{{bounds: mesh.Bounds{Min: mgl32.Vec3{-1, 0, 0}, Max: mgl32.Vec3{1, 0, 0}}}}
	b, ok := c.extent(cfg)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, b.Max)
}

func TestPick_Nearest(t *testing.T) {
	cfg := config.SceneConfig{Instances: 1, Spacing: 1}
	cube := mesh.Bounds{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	c := &content{models: []model{
		{desc: resource.MeshDescriptor{Name: "front"}, bounds: cube},
		{desc: resource.MeshDescriptor{Name: "back"}, bounds: cube},
	}}

	name, box, ok := c.pick(picking.Ray{Origin: mgl32.Vec3{0, 0, 10}, Direction: mgl32.Vec3{0, 0, -1}}, cfg)
	require.True(t, ok)
	assert.Equal(t, "front", name)
	assert.Equal(t, reach(c.models[0]), box)

	name, _, ok = c.pick(picking.Ray{Origin: mgl32.Vec3{0, 0, -20}, Direction: mgl32.Vec3{0, 0, 1}}, cfg)
	require.True(t, ok)
	assert.Equal(t, "back", name)

	_, _, ok = c.pick(picking.Ray{Origin: mgl32.Vec3{10, 0, 0}, Direction: mgl32.Vec3{0, 1, 0}}, cfg)
	assert.False(t, ok)
}

func TestLoadContent(t *testing.T) {
	s := newTestScene(t, map[string]string{
		"quad.obj":       quadOBJ,
		"glow.frag":      "// glow\n",
		"materials.yaml": manifest,
	})
	cfg := config.AssetsConfig{
		Meshes:    []string{"quad.obj", "missing.obj", "quad.obj"},
		Shader:    "glow.frag",
		Materials: "materials.yaml",
	}

	c := loadContent(s, cfg, zap.NewNop())
	require.Len(t, c.models, 1)
	assert.Len(t, c.materials, 2)

	md := c.models[0].desc
	assert.Equal(t, "quad", md.Name)
	assert.Equal(t, c.materials["quad"], md.Material)
	shader, ok := md.Shader()
	require.True(t, ok)
	assert.Equal(t, c.shader, shader)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, c.models[0].bounds.Max)

	c.queue(config.SceneConfig{Instances: 2, Spacing: 1.5}, 0)
	batches := s.Frame(gpu.NewMemoryDevice())
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Instances())
	assert.Equal(t, "quad", batches[0].Material.Name)
	assert.Equal(t, "glow.frag", batches[0].Shader.Path)
	assert.Equal(t, palette[:2], batches[0].Colors)
}

func TestLoadContent_BadManifest(t *testing.T) {
	s := newTestScene(t, map[string]string{
		"quad.obj":       quadOBJ,
		"materials.yaml": "materials:\n  - color: [1, 1, 1, 1]\n",
	})

	c := loadContent(s, config.AssetsConfig{
		Meshes:    []string{"quad.obj"},
		Materials: "materials.yaml",
	}, zap.NewNop())

	require.Len(t, c.models, 1)
	assert.Empty(t, c.materials)
	assert.Equal(t, resource.DefaultMaterial, c.models[0].desc.Material)
	_, ok := c.models[0].desc.Shader()
	assert.False(t, ok)
}
