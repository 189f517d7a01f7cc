// Package codec implements the asset codecs used by the staging pipeline.
// Block-compressed texture decoder for DXT1/DXT3/DXT5 and uncompressed BGR(A) formats.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
)

// Texture format errors.
var (
	ErrUnsupportedTextureFormat = errors.New("unsupported texture format")
	ErrTruncatedTextureData     = errors.New("truncated texture data")
)

// TextureFormat identifies the pixel layout of a compressed texture blob.
type TextureFormat int

// Supported texture formats.
const (
	TexDXT1     TextureFormat = 0 // 4x4 blocks, 8 bytes/block, opaque RGB
	TexDXT3     TextureFormat = 1 // 4x4 blocks, 16 bytes/block, explicit 4-bit alpha
	TexDXT5     TextureFormat = 2 // 4x4 blocks, 16 bytes/block, interpolated alpha
	TexA8R8G8B8 TextureFormat = 3 // uncompressed, 4 bytes/pixel (B,G,R,A)
	TexX8R8G8B8 TextureFormat = 4 // uncompressed, 4 bytes/pixel (B,G,R,X), X dropped
	TexR8G8B8   TextureFormat = 5 // uncompressed, 3 bytes/pixel (B,G,R)
)

// String returns a human-readable format name.
func (f TextureFormat) String() string {
	switch f {
	case TexDXT1:
		return "DXT1"
	case TexDXT3:
		return "DXT3"
	case TexDXT5:
		return "DXT5"
	case TexA8R8G8B8:
		return "A8R8G8B8"
	case TexX8R8G8B8:
		return "X8R8G8B8"
	case TexR8G8B8:
		return "R8G8B8"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// Channels returns the channel count of the decoded raster (3 or 4).
func (f TextureFormat) Channels() int {
	switch f {
	case TexDXT3, TexDXT5, TexA8R8G8B8:
		return 4
	default:
		return 3
	}
}

// Compressed returns true for the block-compressed DXT formats.
func (f TextureFormat) Compressed() bool {
	return f == TexDXT1 || f == TexDXT3 || f == TexDXT5
}

// RasterImage is a packed decoded pixel buffer.
// Invariant: len(Pix) == Width*Height*Channels.
type RasterImage struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) or 4 (RGBA)
	Pix      []byte
}

// ToNRGBA converts the raster to a standard library image.
// RGB rasters are expanded with opaque alpha.
func (r *RasterImage) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Width*r.Height; i++ {
		src := i * r.Channels
		dst := i * 4
		img.Pix[dst] = r.Pix[src]
		img.Pix[dst+1] = r.Pix[src+1]
		img.Pix[dst+2] = r.Pix[src+2]
		if r.Channels == 4 {
			img.Pix[dst+3] = r.Pix[src+3]
		} else {
			img.Pix[dst+3] = 255
		}
	}
	return img
}

// DecodeTexture decompresses texture data into a packed raster.
//
// Truncated input is not fatal: decoding stops at the first block or pixel
// that would read past the end of data, and the partial raster is returned
// together with ErrTruncatedTextureData. Callers that require a complete
// image must treat any non-nil error as failure; lenient callers may keep
// the partial result. An unknown format returns an empty raster and
// ErrUnsupportedTextureFormat.
func DecodeTexture(format TextureFormat, width, height int, data []byte) (*RasterImage, error) {
	switch format {
	case TexDXT1:
		return decodeDXT1(width, height, data)
	case TexDXT3:
		return decodeDXT3(width, height, data)
	case TexDXT5:
		return decodeDXT5(width, height, data)
	case TexA8R8G8B8, TexX8R8G8B8, TexR8G8B8:
		return decodeUncompressed(format, width, height, data)
	default:
		return &RasterImage{}, fmt.Errorf("%w: %s", ErrUnsupportedTextureFormat, format)
	}
}

// expand565 widens an RGB565 color to 8-bit components.
func expand565(c uint16) [3]int {
	r := int(c>>11) & 0x1F
	g := int(c>>5) & 0x3F
	b := int(c) & 0x1F
	return [3]int{
		r<<3 | r>>2,
		g<<2 | g>>4,
		b<<3 | b>>2,
	}
}

// colorPalette computes the 4-entry DXT color palette from two RGB565
// endpoints using the integer interpolation (2*c0+c1)/3 and (c0+2*c1)/3.
// Blocks are always treated as opaque; the c0<=c1 punch-through mode is
// not part of this format family.
func colorPalette(c0, c1 uint16) [4][3]byte {
	e0 := expand565(c0)
	e1 := expand565(c1)

	var p [4][3]byte
	for i := 0; i < 3; i++ {
		p[0][i] = byte(e0[i])
		p[1][i] = byte(e1[i])
		p[2][i] = byte((2*e0[i] + e1[i]) / 3)
		p[3][i] = byte((e0[i] + 2*e1[i]) / 3)
	}
	return p
}

// alphaPalette computes the 8-entry DXT5 alpha palette from two endpoints.
func alphaPalette(a0, a1 byte) [8]byte {
	var p [8]byte
	p[0] = a0
	p[1] = a1

	if a0 > a1 {
		// 8-value ramp
		for i := 2; i < 8; i++ {
			p[i] = byte(((8-i)*int(a0) + (i-1)*int(a1)) / 7)
		}
	} else {
		// 6-value ramp plus transparent/opaque extremes
		for i := 2; i < 6; i++ {
			p[i] = byte(((6-i)*int(a0) + (i-1)*int(a1)) / 5)
		}
		p[6] = 0
		p[7] = 255
	}
	return p
}

func decodeDXT1(w, h int, data []byte) (*RasterImage, error) {
	raster := &RasterImage{Width: w, Height: h, Channels: 3, Pix: make([]byte, w*h*3)}

	bw := (w + 3) / 4
	bh := (h + 3) / 4
	offset := 0

	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			if offset+8 > len(data) {
				return raster, fmt.Errorf("%w: DXT1 block (%d,%d) at offset %d", ErrTruncatedTextureData, bx, by, offset)
			}

			c0 := binary.LittleEndian.Uint16(data[offset:])
			c1 := binary.LittleEndian.Uint16(data[offset+2:])
			indices := binary.LittleEndian.Uint32(data[offset+4:])
			offset += 8

			colors := colorPalette(c0, c1)
			writeColorBlock(raster, bx, by, colors, indices, nil)
		}
	}

	return raster, nil
}

func decodeDXT3(w, h int, data []byte) (*RasterImage, error) {
	raster := &RasterImage{Width: w, Height: h, Channels: 4, Pix: make([]byte, w*h*4)}

	bw := (w + 3) / 4
	bh := (h + 3) / 4
	offset := 0

	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			if offset+16 > len(data) {
				return raster, fmt.Errorf("%w: DXT3 block (%d,%d) at offset %d", ErrTruncatedTextureData, bx, by, offset)
			}

			// 16 explicit 4-bit alphas packed into a little-endian 64-bit word
			alphaBits := binary.LittleEndian.Uint64(data[offset:])

			c0 := binary.LittleEndian.Uint16(data[offset+8:])
			c1 := binary.LittleEndian.Uint16(data[offset+10:])
			indices := binary.LittleEndian.Uint32(data[offset+12:])
			offset += 16

			var alphas [16]byte
			for p := 0; p < 16; p++ {
				alphas[p] = byte((alphaBits>>(4*p))&0x0F) << 4
			}

			colors := colorPalette(c0, c1)
			writeColorBlock(raster, bx, by, colors, indices, alphas[:])
		}
	}

	return raster, nil
}

func decodeDXT5(w, h int, data []byte) (*RasterImage, error) {
	raster := &RasterImage{Width: w, Height: h, Channels: 4, Pix: make([]byte, w*h*4)}

	bw := (w + 3) / 4
	bh := (h + 3) / 4
	offset := 0

	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			if offset+16 > len(data) {
				return raster, fmt.Errorf("%w: DXT5 block (%d,%d) at offset %d", ErrTruncatedTextureData, bx, by, offset)
			}

			a0 := data[offset]
			a1 := data[offset+1]

			// 16 three-bit alpha indices packed little-endian across 48 bits
			var alphaBits uint64
			for i := 0; i < 6; i++ {
				alphaBits |= uint64(data[offset+2+i]) << (8 * i)
			}

			c0 := binary.LittleEndian.Uint16(data[offset+8:])
			c1 := binary.LittleEndian.Uint16(data[offset+10:])
			indices := binary.LittleEndian.Uint32(data[offset+12:])
			offset += 16

			alpha := alphaPalette(a0, a1)
			var alphas [16]byte
			for p := 0; p < 16; p++ {
				alphas[p] = alpha[(alphaBits>>(3*p))&0x07]
			}

			colors := colorPalette(c0, c1)
			writeColorBlock(raster, bx, by, colors, indices, alphas[:])
		}
	}

	return raster, nil
}

// writeColorBlock writes one decoded 4x4 block into the raster, clipping
// pixels that fall outside the image. alphas may be nil for RGB rasters.
func writeColorBlock(raster *RasterImage, bx, by int, colors [4][3]byte, indices uint32, alphas []byte) {
	for py := 0; py < 4; py++ {
		for px := 0; px < 4; px++ {
			x := bx*4 + px
			y := by*4 + py
			if x >= raster.Width || y >= raster.Height {
				continue
			}

			p := py*4 + px
			c := colors[(indices>>(2*p))&0x03]

			dst := (y*raster.Width + x) * raster.Channels
			raster.Pix[dst] = c[0]
			raster.Pix[dst+1] = c[1]
			raster.Pix[dst+2] = c[2]
			if alphas != nil {
				raster.Pix[dst+3] = alphas[p]
			}
		}
	}
}

// decodeUncompressed unpacks per-pixel B,G,R[,A/X] data.
func decodeUncompressed(format TextureFormat, w, h int, data []byte) (*RasterImage, error) {
	channels := format.Channels()
	raster := &RasterImage{Width: w, Height: h, Channels: channels, Pix: make([]byte, w*h*channels)}

	bytesPerPixel := 3
	if format == TexA8R8G8B8 || format == TexX8R8G8B8 {
		bytesPerPixel = 4
	}

	for i := 0; i < w*h; i++ {
		src := i * bytesPerPixel
		if src+bytesPerPixel > len(data) {
			return raster, fmt.Errorf("%w: pixel %d at offset %d", ErrTruncatedTextureData, i, src)
		}

		dst := i * channels
		raster.Pix[dst] = data[src+2]   // R
		raster.Pix[dst+1] = data[src+1] // G
		raster.Pix[dst+2] = data[src]   // B
		if format == TexA8R8G8B8 {
			raster.Pix[dst+3] = data[src+3]
		}
	}

	return raster, nil
}
