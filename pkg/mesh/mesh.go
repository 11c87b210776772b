// Package mesh converts face-corner indexed geometry into unified vertex
// and index arrays suitable for GPU upload.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/rendox/pkg/objfile"
)

// VertexKey identifies a unique output vertex.
// UV is objfile.NoIndex when the corner has no texture coordinate.
// A negative Normal refers to the computed normal of source face
// -(Normal+1); explicit normals are always >= 0.
type VertexKey struct {
	Position int
	UV       int
	Normal   int
}

// Vertex is one unified GPU vertex.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec3
	Normal   mgl32.Vec3
}

// Bounds holds the axis-aligned bounding box of the geometry.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Center returns the midpoint of the box.
func (b Bounds) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box on each axis.
func (b Bounds) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Geometry is GPU-ready mesh data. It is immutable after Solve returns.
type Geometry struct {
	Path string

	Indices   []uint32
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec3
	Normals   []mgl32.Vec3

	Bounds Bounds

	// Skeletal data is not read from any source yet.
	Bones   []Bone
	Weights []VertexWeights
	Groups  []VertexGroup
}

// Build solves a parsed OBJ and tags the result with its source path.
func Build(obj *objfile.OBJ, path string) *Geometry {
	g := Solve(obj.RawAttributes, obj.Triangles)
	g.Path = path
	return g
}

// Solve deduplicates triangle corners into unified vertices.
// Two corners share an output index if and only if their VertexKey values
// are equal; indices are assigned in first-seen order and triangle winding
// is preserved.
func Solve(attrs objfile.RawAttributes, tris []objfile.Triangle) *Geometry {
	g := &Geometry{
		Indices: make([]uint32, 0, len(tris)*3),
	}
	lookup := make(map[VertexKey]uint32, len(tris)*3)

	for _, tri := range tris {
		for _, c := range tri.Corners {
			key := cornerKey(tri, c)
			idx, ok := lookup[key]
			if !ok {
				idx = uint32(len(g.Positions))
				lookup[key] = idx
				g.appendVertex(attrs, tri, c)
			}
			g.Indices = append(g.Indices, idx)
		}
	}

	g.Bounds = computeBounds(g.Positions)
	return g
}

func cornerKey(tri objfile.Triangle, c objfile.FaceCorner) VertexKey {
	key := VertexKey{Position: c.Position, UV: objfile.NoIndex, Normal: c.Normal}
	if tri.HasUV {
		key.UV = c.UV
	}
	if !tri.HasNormal || c.Normal == objfile.NoIndex {
		key.Normal = -(tri.Face + 1)
	}
	return key
}

func (g *Geometry) appendVertex(attrs objfile.RawAttributes, tri objfile.Triangle, c objfile.FaceCorner) {
	g.Positions = append(g.Positions, attrs.Positions[c.Position])

	var uv mgl32.Vec3
	if tri.HasUV && c.UV != objfile.NoIndex {
		uv = attrs.UVs[c.UV]
	}
	g.UVs = append(g.UVs, uv)

	normal := tri.FaceNormal
	if tri.HasNormal && c.Normal != objfile.NoIndex {
		normal = attrs.Normals[c.Normal]
	}
	g.Normals = append(g.Normals, normal)
}

func computeBounds(positions []mgl32.Vec3) Bounds {
	if len(positions) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < b.Min[i] {
				b.Min[i] = p[i]
			}
			if p[i] > b.Max[i] {
				b.Max[i] = p[i]
			}
		}
	}
	return b
}

// VertexCount returns the number of unified vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// TriangleCount returns the number of triangles in the index list.
func (g *Geometry) TriangleCount() int {
	return len(g.Indices) / 3
}

// Vertices returns the unified vertices as structs.
func (g *Geometry) Vertices() []Vertex {
	out := make([]Vertex, len(g.Positions))
	for i := range out {
		out[i] = Vertex{
			Position: g.Positions[i],
			UV:       g.UVs[i],
			Normal:   g.Normals[i],
		}
	}
	return out
}
