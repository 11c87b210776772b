package gpu

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDevice_Buffer(t *testing.T) {
	d := NewMemoryDevice()

	data := []byte{1, 2, 3, 4}
	buf, err := d.CreateBuffer("verts", BufferUsageVertex, data)
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Size())

	// The device owns a copy.
	data[0] = 9
	assert.Equal(t, byte(1), buf.(*MemoryBuffer).Data[0])

	_, err = d.CreateBuffer("empty", BufferUsageIndex, nil)
	assert.ErrorIs(t, err, ErrEmptyData)

	assert.Equal(t, 1, d.Buffers)
	assert.Equal(t, 4, d.BytesAllocated())

	buf.Release()
	buf.Release()
	assert.Equal(t, 1, d.Released)
	assert.Equal(t, 0, d.Live())
}

func TestMemoryDevice_ShaderAndPipeline(t *testing.T) {
	d := NewMemoryDevice()
	d.ShaderCheck = func(label, source string) error {
		if source == "broken" {
			return errors.New("syntax error")
		}
		return nil
	}

	_, err := d.CreateShaderModule("bad", "broken")
	assert.ErrorContains(t, err, "syntax error")

	_, err = d.CreateShaderModule("blank", "  \n")
	assert.ErrorIs(t, err, ErrEmptyData)

	mod, err := d.CreateShaderModule("good", "void main() {}")
	require.NoError(t, err)

	_, err = d.CreateRenderPipeline("p", mod, PipelineLayout{})
	assert.Error(t, err)

	pipe, err := d.CreateRenderPipeline("p", mod, StandardLayout)
	require.NoError(t, err)
	assert.Equal(t, "good", pipe.(*MemoryPipeline).Module.Label)

	other := NewMemoryDevice()
	_, err = other.CreateRenderPipeline("p", mod, StandardLayout)
	assert.ErrorIs(t, err, ErrForeignHandle)

	mod.Release()
	_, err = d.CreateRenderPipeline("p2", mod, StandardLayout)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestMemoryDevice_Texture(t *testing.T) {
	d := NewMemoryDevice()

	img := image.NewRGBA(image.Rect(2, 2, 5, 4))
	img.Set(2, 2, color.RGBA{255, 0, 0, 255})

	tex, err := d.CreateTexture("red", img)
	require.NoError(t, err)
	assert.Equal(t, 3, tex.Width())
	assert.Equal(t, 2, tex.Height())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, tex.(*MemoryTexture).Image.RGBAAt(0, 0))

	_, err = d.CreateTexture("nil", nil)
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestLayouts(t *testing.T) {
	last := VertexLayout.Attributes[len(VertexLayout.Attributes)-1]
	assert.Equal(t, VertexLayout.Stride, last.Offset+last.Components*4)

	last = InstanceLayout.Attributes[len(InstanceLayout.Attributes)-1]
	assert.Equal(t, InstanceLayout.Stride, last.Offset+last.Components*4)
	assert.True(t, InstanceLayout.PerInstance)
}
