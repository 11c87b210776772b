package gpu

// Attribute is one float32 vector attribute of a buffer layout.
type Attribute struct {
	Location   uint32
	Components int
	Offset     int
}

// BufferLayout describes the records of one vertex buffer.
type BufferLayout struct {
	Stride      int
	PerInstance bool
	Attributes  []Attribute
}

// PipelineLayout lists the vertex buffers a pipeline reads, in binding order.
type PipelineLayout struct {
	Buffers []BufferLayout
}

// VertexLayout matches mesh.Geometry.Interleaved: pos, uv, normal.
var VertexLayout = BufferLayout{
	Stride: 36,
	Attributes: []Attribute{
		{Location: 0, Components: 3, Offset: 0},
		{Location: 1, Components: 3, Offset: 12},
		{Location: 2, Components: 3, Offset: 24},
	},
}

// InstanceLayout is one instance record: color.xyz then the model matrix
// as four column vectors.
var InstanceLayout = BufferLayout{
	Stride:      76,
	PerInstance: true,
	Attributes: []Attribute{
		{Location: 3, Components: 3, Offset: 0},
		{Location: 4, Components: 4, Offset: 12},
		{Location: 5, Components: 4, Offset: 28},
		{Location: 6, Components: 4, Offset: 44},
		{Location: 7, Components: 4, Offset: 60},
	},
}

// StandardLayout is the layout every material pipeline is built with.
var StandardLayout = PipelineLayout{
	Buffers: []BufferLayout{VertexLayout, InstanceLayout},
}
