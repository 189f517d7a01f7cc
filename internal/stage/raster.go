// Package stage decodes raw asset dumps and writes staged viewer files.
// Raster payload container: a small header plus the lz4-compressed,
// mip-concatenated pixel data the viewer uploads straight to the GPU.
package stage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/image/draw"

	"github.com/Faultbox/assetforge/pkg/codec"
)

// Raster container errors.
var (
	ErrInvalidRasterMagic  = errors.New("invalid raster magic: expected 'RGLZ'")
	ErrTruncatedRasterData = errors.New("truncated raster payload")
)

const (
	rasterExt        = ".rglz"
	rasterMagic      = "RGLZ"
	rasterHeaderSize = 16
)

// writeRasterFile writes mip levels (finest first) as one container:
//
//	offset 0  : "RGLZ"
//	offset 4  : width      u16 LE (level 0)
//	offset 6  : height     u16 LE (level 0)
//	offset 8  : channels   u8
//	offset 9  : mipCount   u8
//	offset 10 : pad        2 bytes
//	offset 12 : rawLength  u32 LE (uncompressed payload bytes)
//	offset 16 : lz4 frame of all levels' pixels, concatenated
func writeRasterFile(path string, levels []*codec.RasterImage) error {
	base := levels[0]

	payload := new(bytes.Buffer)
	for _, level := range levels {
		payload.Write(level.Pix)
	}

	buf := new(bytes.Buffer)
	buf.WriteString(rasterMagic)
	binary.Write(buf, binary.LittleEndian, uint16(base.Width))
	binary.Write(buf, binary.LittleEndian, uint16(base.Height))
	buf.WriteByte(byte(base.Channels))
	buf.WriteByte(byte(len(levels)))
	buf.Write([]byte{0, 0})
	binary.Write(buf, binary.LittleEndian, uint32(payload.Len()))

	zw := lz4.NewWriter(buf)
	if _, err := zw.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("compressing raster payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing raster payload: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadRasterFile loads a staged raster container back into mip levels,
// finest first.
func ReadRasterFile(path string) ([]*codec.RasterImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading raster file: %w", err)
	}

	if len(data) < rasterHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for header", ErrTruncatedRasterData, len(data), rasterHeaderSize)
	}
	if string(data[0:4]) != rasterMagic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidRasterMagic, data[0:4])
	}

	width := int(binary.LittleEndian.Uint16(data[4:6]))
	height := int(binary.LittleEndian.Uint16(data[6:8]))
	channels := int(data[8])
	mipCount := int(data[9])
	rawLength := binary.LittleEndian.Uint32(data[12:16])

	zr := lz4.NewReader(bytes.NewReader(data[rasterHeaderSize:]))
	payload := make([]byte, rawLength)
	if _, err := io.ReadFull(zr, payload); err != nil {
		return nil, fmt.Errorf("%w: decompressing payload", ErrTruncatedRasterData)
	}

	levels := make([]*codec.RasterImage, 0, mipCount)
	w, h := width, height
	offset := 0
	for i := 0; i < mipCount; i++ {
		size := w * h * channels
		if offset+size > len(payload) {
			return nil, fmt.Errorf("%w: mip %d needs %d bytes", ErrTruncatedRasterData, i, size)
		}
		levels = append(levels, &codec.RasterImage{
			Width:    w,
			Height:   h,
			Channels: channels,
			Pix:      payload[offset : offset+size : offset+size],
		})
		offset += size
		w = max(1, w/2)
		h = max(1, h/2)
	}

	return levels, nil
}

// mipChain converts the raster to RGBA and appends successively halved
// levels down to 1x1. Level dimensions follow max(1, n/2) so non-square
// and non-power-of-two rasters still terminate.
func mipChain(base *codec.RasterImage) []*codec.RasterImage {
	src := base.ToNRGBA()
	levels := []*codec.RasterImage{{
		Width:    base.Width,
		Height:   base.Height,
		Channels: 4,
		Pix:      src.Pix,
	}}

	w, h := base.Width, base.Height
	for w > 1 || h > 1 {
		w = max(1, w/2)
		h = max(1, h/2)

		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

		levels = append(levels, &codec.RasterImage{
			Width:    w,
			Height:   h,
			Channels: 4,
			Pix:      dst.Pix,
		})
		src = dst
	}

	return levels
}
