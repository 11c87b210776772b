package resource

import (
	"errors"
	"math"
)

// Registry errors.
var (
	ErrBusy            = errors.New("registry busy")
	ErrUnknownSlot     = errors.New("unknown slot")
	ErrNotMaterialized = errors.New("resource not materialized")
)

// MeshSlot, MaterialSlot and ShaderSlot index the registry tables.
// Slots are allocated in increasing order and never reused.
type (
	MeshSlot     uint32
	MaterialSlot uint32
	ShaderSlot   uint32
)

const (
	// DefaultShader is built from the device's own fragment stage unless
	// the registry is given one.
	DefaultShader ShaderSlot = 0
	// DefaultMaterial is white, untextured and uses DefaultShader.
	DefaultMaterial MaterialSlot = 0

	// InvalidMaterial is returned when a material could not be registered.
	InvalidMaterial MaterialSlot = math.MaxUint32
)

// MeshDescriptor is the draw-call key: a mesh drawn with a material.
// It is a comparable value; copies are independent.
type MeshDescriptor struct {
	Mesh     MeshSlot
	Material MaterialSlot
	Name     string

	shader    ShaderSlot
	hasShader bool
}

// Shader returns the shader override bound with BindShader, if any.
func (md MeshDescriptor) Shader() (ShaderSlot, bool) {
	return md.shader, md.hasShader
}
