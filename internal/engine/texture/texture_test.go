package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tgaFile(imageType byte, bpp byte, w, h int, topToBottom bool, body []byte) []byte {
	header := make([]byte, 18)
	header[2] = imageType
	header[12], header[13] = byte(w), byte(w>>8)
	header[14], header[15] = byte(h), byte(h>>8)
	header[16] = bpp
	if topToBottom {
		header[17] = 0x20
	}
	return append(header, body...)
}

func TestDecodeTGA_Uncompressed(t *testing.T) {
	// 2x1 BGR: blue then red.
	data := tgaFile(TGATypeUncompressed, 24, 2, 1, true, []byte{255, 0, 0, 0, 0, 255})

	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(1, 0))
}

func TestDecodeTGA_BottomUp(t *testing.T) {
	// 1x2 BGRA, first stored row is the bottom one.
	data := tgaFile(TGATypeUncompressed, 32, 1, 2, false, []byte{0, 255, 0, 128, 0, 0, 255, 255})

	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 255, 0, 128}, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
}

func TestDecodeTGA_RLE(t *testing.T) {
	body := []byte{
		0x82, 0, 0, 255, // repeat red three times
		0x00, 255, 0, 0, // one raw blue pixel
	}
	img, err := DecodeTGA(tgaFile(TGATypeRLE, 24, 4, 1, true, body))
	require.NoError(t, err)
	for x := 0; x < 3; x++ {
		assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(x, 0))
	}
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(3, 0))
}

func TestDecodeTGA_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{0, 0, 2}},
		{"color mapped", func() []byte { d := tgaFile(2, 24, 1, 1, true, []byte{0, 0, 0}); d[1] = 1; return d }()},
		{"grayscale", tgaFile(3, 8, 1, 1, true, []byte{0})},
		{"16 bit", tgaFile(2, 16, 1, 1, true, []byte{0, 0})},
		{"truncated pixels", tgaFile(2, 24, 2, 2, true, []byte{0, 0, 0})},
		{"truncated rle", tgaFile(10, 24, 2, 1, true, []byte{0x81})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTGA(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDecode(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(1, 1, color.NRGBA{10, 20, 30, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := Decode("maps/albedo.png", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, img.RGBAAt(1, 1))

	tga := tgaFile(TGATypeUncompressed, 24, 1, 1, true, []byte{1, 2, 3})
	img, err = Decode("maps/ALBEDO.TGA", tga)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{3, 2, 1, 255}, img.RGBAAt(0, 0))

	_, err = Decode("maps/garbage.png", []byte("not an image"))
	assert.ErrorContains(t, err, "maps/garbage.png")
}

func TestToRGBA_ShiftsOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.SetRGBA(6, 5, color.RGBA{1, 2, 3, 4})

	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 2, 1), out.Rect)
	assert.Equal(t, color.RGBA{1, 2, 3, 4}, out.RGBAAt(1, 0))

	same := image.NewRGBA(image.Rect(0, 0, 1, 1))
	assert.Same(t, same, ToRGBA(same))
}

func TestPlaceholderAndResize(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	img := Placeholder(4, white)
	assert.Equal(t, 4, img.Rect.Dx())
	assert.Equal(t, white, img.RGBAAt(3, 3))

	small := Resize(img, 2, 2)
	assert.Equal(t, image.Rect(0, 0, 2, 2), small.Rect)
	assert.Equal(t, white, small.RGBAAt(1, 1))
}
