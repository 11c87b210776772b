package mesh

import "github.com/go-gl/mathgl/mgl32"

// Bone is a node of a skeleton hierarchy. Parent is -1 for roots.
type Bone struct {
	Name        string
	Parent      int
	InverseBind mgl32.Mat4
}

// VertexWeights lists the bone influences of one vertex.
type VertexWeights struct {
	Bones   [4]int
	Weights [4]float32
}

// VertexGroup is a named set of vertex indices.
type VertexGroup struct {
	Name     string
	Vertices []uint32
}
