package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	TGATypeUncompressed = 2
	TGATypeRLE          = 10
)

var errTGATruncated = errors.New("tga: data truncated")

type tgaHeader struct {
	idLength     int
	colorMapType byte
	imageType    byte
	width        int
	height       int
	bpp          int
	topToBottom  bool
}

func readTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < 18 {
		return tgaHeader{}, errTGATruncated
	}
	h := tgaHeader{
		idLength:     int(data[0]),
		colorMapType: data[1],
		imageType:    data[2],
		width:        int(data[12]) | int(data[13])<<8,
		height:       int(data[14]) | int(data[15])<<8,
		bpp:          int(data[16]),
		topToBottom:  data[17]&0x20 != 0,
	}
	switch {
	case h.colorMapType != 0:
		return h, fmt.Errorf("tga: color-mapped images not supported")
	case h.imageType != TGATypeUncompressed && h.imageType != TGATypeRLE:
		return h, fmt.Errorf("tga: unsupported image type %d", h.imageType)
	case h.bpp != 24 && h.bpp != 32:
		return h, fmt.Errorf("tga: unsupported bit depth %d", h.bpp)
	case h.width == 0 || h.height == 0:
		return h, fmt.Errorf("tga: empty image")
	}
	return h, nil
}

// DecodeTGA decodes an uncompressed or RLE true-color TGA image.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	h, err := readTGAHeader(data)
	if err != nil {
		return nil, err
	}
	offset := 18 + h.idLength
	if offset > len(data) {
		return nil, errTGATruncated
	}

	r := &tgaReader{data: data[offset:], bpp: h.bpp / 8}
	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	put := func(i int, c color.RGBA) {
		x, y := i%h.width, i/h.width
		if !h.topToBottom {
			y = h.height - 1 - y
		}
		img.SetRGBA(x, y, c)
	}

	total := h.width * h.height
	for i := 0; i < total; {
		if h.imageType == TGATypeUncompressed {
			c, err := r.pixel()
			if err != nil {
				return nil, err
			}
			put(i, c)
			i++
			continue
		}

		packet, err := r.byte()
		if err != nil {
			return nil, err
		}
		count := int(packet&0x7F) + 1
		repeat := packet&0x80 != 0

		var c color.RGBA
		for n := 0; n < count && i < total; n++ {
			if n == 0 || !repeat {
				if c, err = r.pixel(); err != nil {
					return nil, err
				}
			}
			put(i, c)
			i++
		}
	}
	return img, nil
}

type tgaReader struct {
	data []byte
	pos  int
	bpp  int
}

func (r *tgaReader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errTGATruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// pixel reads one BGR(A) pixel.
func (r *tgaReader) pixel() (color.RGBA, error) {
	if r.pos+r.bpp > len(r.data) {
		return color.RGBA{}, errTGATruncated
	}
	p := r.data[r.pos : r.pos+r.bpp]
	r.pos += r.bpp
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if r.bpp == 4 {
		c.A = p[3]
	}
	return c, nil
}
