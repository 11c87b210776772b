package viewer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/config"
	"github.com/Faultbox/rendox/internal/engine/picking"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/engine/scene"
	"github.com/Faultbox/rendox/pkg/mesh"
)

// palette tints instances when more than one is drawn per mesh.
var palette = []mgl32.Vec3{
	{1, 1, 1},
	{0.95, 0.55, 0.45},
	{0.5, 0.8, 0.55},
	{0.45, 0.65, 0.95},
	{0.95, 0.85, 0.4},
	{0.75, 0.55, 0.9},
}

type model struct {
	path   string
	desc   resource.MeshDescriptor
	bounds mesh.Bounds
}

// content is what the viewer shows: the loaded meshes and the material and
// shader bindings applied to them.
type content struct {
	scene *scene.Scene
	log   *zap.Logger

	materials map[string]resource.MaterialSlot
	shader    resource.ShaderSlot
	hasShader bool

	models []model
}

// loadContent registers the startup assets. Missing files are logged and
// skipped so one bad path does not stop the viewer.
func loadContent(s *scene.Scene, cfg config.AssetsConfig, log *zap.Logger) *content {
	c := &content{
		scene:     s,
		log:       log,
		materials: make(map[string]resource.MaterialSlot),
	}

	if cfg.Materials != "" {
		slots, err := s.Registry().LoadMaterialManifest(cfg.Materials)
		if err != nil {
			log.Warn("material manifest not loaded", zap.String("path", cfg.Materials), zap.Error(err))
		} else {
			c.materials = slots
			log.Info("materials loaded", zap.Int("count", len(slots)))
		}
	}

	if cfg.Shader != "" {
		slot, err := s.LoadShader(cfg.Shader)
		if err == nil {
			c.shader, c.hasShader = slot, true
		}
	}

	for _, path := range cfg.Meshes {
		c.add(path)
	}
	return c
}

// add loads a mesh and binds the material named after it, if any.
func (c *content) add(path string) bool {
	md, err := c.scene.LoadMesh(path)
	if err != nil {
		return false
	}
	for _, m := range c.models {
		if m.desc.Mesh == md.Mesh {
			return true
		}
	}

	if slot, ok := c.materials[md.Name]; ok {
		c.scene.BindMaterial(&md, slot)
	}
	if c.hasShader {
		c.scene.BindShader(&md, c.shader)
	}

	m := model{path: path, desc: md}
	if geom, ok := c.scene.Registry().Geometry(md.Mesh); ok && geom != nil {
		m.bounds = geom.Bounds
	}
	c.models = append(c.models, m)
	c.log.Info("mesh added", zap.String("path", path), zap.String("name", md.Name))
	return true
}

// placements returns where the instances of model i are centered.
func placements(i int, m model, cfg config.SceneConfig) []mgl32.Vec3 {
	cell := cfg.Spacing * max(1, m.bounds.Size().Len())
	offsets := Grid(cfg.Instances, cell)
	row := mgl32.Vec3{0, 0, -float32(i) * cell * float32(gridSide(cfg.Instances))}
	for j := range offsets {
		offsets[j] = offsets[j].Add(row)
	}
	return offsets
}

// reach returns the box an instance of m centered at the origin covers at
// any spin angle.
func reach(m model) mesh.Bounds {
	r := m.bounds.Size().Len() / 2
	return mesh.Bounds{Min: mgl32.Vec3{-r, -r, -r}, Max: mgl32.Vec3{r, r, r}}
}

// extent returns the box covering every instance.
func (c *content) extent(cfg config.SceneConfig) (mesh.Bounds, bool) {
	var b mesh.Bounds
	first := true
	for i, m := range c.models {
		for _, p := range placements(i, m, cfg) {
			box := picking.Offset(reach(m), p)
			if first {
				b, first = box, false
				continue
			}
			for k := 0; k < 3; k++ {
				b.Min[k] = min(b.Min[k], box.Min[k])
				b.Max[k] = max(b.Max[k], box.Max[k])
			}
		}
	}
	return b, !first
}

// pick returns the box of the nearest instance hit by ray.
func (c *content) pick(ray picking.Ray, cfg config.SceneConfig) (string, mesh.Bounds, bool) {
	var (
		name    string
		best    mesh.Bounds
		nearest float32
		found   bool
	)
	for i, m := range c.models {
		for _, p := range placements(i, m, cfg) {
			box := picking.Offset(reach(m), p)
			if t, hit := ray.IntersectBounds(box); hit && (!found || t < nearest) {
				name, best, nearest, found = m.desc.Name, box, t, true
			}
		}
	}
	return name, best, found
}

// queue submits every model for this frame. Instances spin about their own
// center at cfg.SpinSpeed.
func (c *content) queue(cfg config.SceneConfig, elapsed float32) {
	rot := mgl32.Vec3{0, elapsed * cfg.SpinSpeed, 0}
	for i, m := range c.models {
		center := m.bounds.Center()
		recenter := mgl32.Translate3D(-center.X(), -center.Y(), -center.Z())

		at := placements(i, m, cfg)
		transforms := make([]mgl32.Mat4, len(at))
		for j, p := range at {
			transforms[j] = scene.Transform(p, rot, mgl32.Vec3{1, 1, 1}).Mul4(recenter)
		}

		var colors []mgl32.Vec3
		if len(at) > 1 {
			colors = palette
		}
		c.scene.DrawInstances(m.desc, transforms, colors)
	}
}

func gridSide(n int) int {
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Grid lays n cells out on a square XZ grid centered on the origin.
func Grid(n int, spacing float32) []mgl32.Vec3 {
	if n <= 0 {
		return nil
	}
	side := gridSide(n)
	half := float32(side-1) * spacing / 2

	out := make([]mgl32.Vec3, 0, n)
	for i := 0; i < n; i++ {
		x := float32(i%side)*spacing - half
		z := float32(i/side)*spacing - half
		out = append(out, mgl32.Vec3{x, 0, z})
	}
	return out
}
