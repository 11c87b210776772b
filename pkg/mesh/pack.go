package mesh

import (
	"encoding/binary"
	"math"
)

// VertexStride is the size in bytes of one interleaved vertex:
// position, uv and normal, three float32 each.
const VertexStride = 9 * 4

// IndexSize is the size in bytes of one index.
const IndexSize = 4

// Interleaved packs the unified vertices as little-endian float32
// pos.xyz uv.xyz normal.xyz records.
func (g *Geometry) Interleaved() []byte {
	buf := make([]byte, len(g.Positions)*VertexStride)
	off := 0
	put := func(v [3]float32) {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	for i := range g.Positions {
		put(g.Positions[i])
		put(g.UVs[i])
		put(g.Normals[i])
	}
	return buf
}

// IndexData packs the index list as little-endian uint32.
func (g *Geometry) IndexData() []byte {
	buf := make([]byte, len(g.Indices)*IndexSize)
	for i, idx := range g.Indices {
		binary.LittleEndian.PutUint32(buf[i*IndexSize:], idx)
	}
	return buf
}
