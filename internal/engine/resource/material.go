package resource

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/gpu"
	"github.com/Faultbox/rendox/internal/engine/texture"
)

// MaterialDataSize is the size of the material uniform block in bytes.
const MaterialDataSize = 4 * 16

const placeholderSize = 4

var (
	placeholderWhite = color.RGBA{255, 255, 255, 255}
	placeholderBlack = color.RGBA{0, 0, 0, 255}
)

// MaterialData is the uniform block shared with the fragment stage.
type MaterialData struct {
	Color    mgl32.Vec4    `yaml:"color"`
	Specular mgl32.Vec4    `yaml:"specular"` // rgb tint, w = strength
	Params   [2]mgl32.Vec4 `yaml:"params"`   // free for custom shaders
}

// DefaultMaterialData returns opaque white with a half-strength white specular.
func DefaultMaterialData() MaterialData {
	return Diffuse(mgl32.Vec4{1, 1, 1, 1})
}

// Diffuse returns material data with the given base color.
func Diffuse(c mgl32.Vec4) MaterialData {
	return MaterialData{
		Color:    c,
		Specular: mgl32.Vec4{1, 1, 1, 0.5},
	}
}

// Bytes packs the block as little-endian float32 vec4s.
func (d MaterialData) Bytes() []byte {
	buf := make([]byte, 0, MaterialDataSize)
	for _, v := range [...]mgl32.Vec4{d.Color, d.Specular, d.Params[0], d.Params[1]} {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// MaterialDescriptor describes a material to register.
type MaterialDescriptor struct {
	Name string       `yaml:"name"`
	Data MaterialData `yaml:",inline"`
	// Maps are texture paths; the first is the diffuse map. A material
	// without maps samples a white texture.
	Maps []string `yaml:"maps"`
	// Shader is a fragment shader path, loaded when the material is built.
	// Empty uses DefaultShader.
	Shader string `yaml:"shader"`
}

// NewMaterialDescriptor returns a descriptor with default data.
func NewMaterialDescriptor(name string) MaterialDescriptor {
	return MaterialDescriptor{Name: name, Data: DefaultMaterialData()}
}

// Material is a materialized material.
type Material struct {
	Name    string
	Data    MaterialData
	Uniform gpu.Buffer
	Maps    []gpu.Texture
	Shader  ShaderSlot
}

func (m *Material) release() {
	if m.Uniform != nil {
		m.Uniform.Release()
	}
	for _, t := range m.Maps {
		t.Release()
	}
}

type materialEntry struct {
	desc  MaterialDescriptor
	dirty bool
	built *Material
	err   error
}

// buildMaterial creates the uniform buffer and textures of a material.
// Texture failures fall back to a black placeholder; only a failure to
// create the uniform buffer or a placeholder fails the build.
func (r *Registry) buildMaterial(dev gpu.Device, slot MaterialSlot, desc MaterialDescriptor) (*Material, error) {
	label := desc.Name
	if label == "" {
		label = fmt.Sprintf("material#%d", slot)
	}

	uniform, err := dev.CreateBuffer(label+" uniform", gpu.BufferUsageUniform, desc.Data.Bytes())
	if err != nil {
		return nil, fmt.Errorf("material %s: %w", label, err)
	}
	m := &Material{
		Name:    desc.Name,
		Data:    desc.Data,
		Uniform: uniform,
		Shader:  DefaultShader,
	}

	if len(desc.Maps) == 0 {
		tex, err := dev.CreateTexture(label+" white", texture.Placeholder(placeholderSize, placeholderWhite))
		if err != nil {
			m.release()
			return nil, fmt.Errorf("material %s: %w", label, err)
		}
		m.Maps = append(m.Maps, tex)
	}
	for _, path := range desc.Maps {
		tex, err := r.loadTexture(dev, path)
		if err != nil {
			r.log.Warn("texture unavailable, using placeholder",
				zap.String("material", label),
				zap.String("path", path),
				zap.Error(err),
			)
			tex, err = dev.CreateTexture(label+" black", texture.Placeholder(placeholderSize, placeholderBlack))
			if err != nil {
				m.release()
				return nil, fmt.Errorf("material %s: %w", label, err)
			}
		}
		m.Maps = append(m.Maps, tex)
	}

	if desc.Shader != "" {
		shader, err := r.loadShader(desc.Shader)
		if err != nil {
			r.log.Warn("material shader unavailable, using default",
				zap.String("material", label),
				zap.String("shader", desc.Shader),
				zap.Error(err),
			)
		} else {
			m.Shader = shader
		}
	}
	return m, nil
}

func (r *Registry) loadTexture(dev gpu.Device, path string) (gpu.Texture, error) {
	data, err := r.source.Load(path)
	if err != nil {
		return nil, err
	}
	img, err := texture.Decode(path, data)
	if err != nil {
		return nil, err
	}
	img = r.fitTexture(img)
	return dev.CreateTexture(path, img)
}

// fitTexture scales img down so neither side exceeds the size limit.
func (r *Registry) fitTexture(img *image.RGBA) *image.RGBA {
	limit := r.maxTextureSize
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if limit <= 0 || (w <= limit && h <= limit) {
		return img
	}
	if w >= h {
		h = max(1, h*limit/w)
		w = limit
	} else {
		w = max(1, w*limit/h)
		h = limit
	}
	return texture.Resize(img, w, h)
}
