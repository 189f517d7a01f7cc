// Package codec implements the asset codecs used by the staging pipeline.
// Compressed heightmap codec: a 44-byte header, an optional per-row run
// table, and split max/min height planes.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// Heightmap format errors.
var (
	ErrInvalidHeightmapMagic  = errors.New("invalid heightmap magic: expected 'HMAP'")
	ErrTruncatedHeightmapData = errors.New("truncated heightmap data")
	ErrInvalidHeightmapShape  = errors.New("invalid heightmap grid shape")
)

const (
	heightmapHeaderSize    = 44
	compressionHeaderSize  = 8
	heightmapMaxDimension  = 10000 // beyond this, assume the byte order was misjudged
	heightmapVersionMajor  = 1
	heightmapVersionMinor  = 0
)

// Magic "HMAP" marks a big-endian file; the byte-reversed "PAMH" marks
// little-endian. Canonical encoder output is big-endian.
var (
	heightmapMagicBE = [4]byte{'H', 'M', 'A', 'P'}
	heightmapMagicLE = [4]byte{'P', 'A', 'M', 'H'}
)

// CompressionHeader describes one contiguous run of populated columns in
// a single heightmap row.
type CompressionHeader struct {
	Start      uint16 // first populated column
	Count      uint16 // number of populated columns
	DataOffset uint32 // byte offset of the run inside each data half
}

// HeightmapGrid is a decoded heightmap: two width*height byte planes
// (maximum and minimum height per cell) plus the terrain bounding box.
type HeightmapGrid struct {
	Width      uint16
	Height     uint16
	BBoxMin    [3]float32
	BBoxMax    [3]float32
	MaxHeights []byte // width*height, row-major
	MinHeights []byte // width*height, row-major
	Compressed bool
	Headers    []CompressionHeader // one per row when Compressed
}

// MaxAt returns the maximum height at (x, y), or 0 out of bounds.
func (g *HeightmapGrid) MaxAt(x, y int) byte {
	if x < 0 || y < 0 || x >= int(g.Width) || y >= int(g.Height) {
		return 0
	}
	return g.MaxHeights[y*int(g.Width)+x]
}

// MinAt returns the minimum height at (x, y), or 0 out of bounds.
func (g *HeightmapGrid) MinAt(x, y int) byte {
	if x < 0 || y < 0 || x >= int(g.Width) || y >= int(g.Height) {
		return 0
	}
	return g.MinHeights[y*int(g.Width)+x]
}

// DecodeHeightmap parses a heightmap file from raw bytes.
//
// Unlike the texture decoder this is strict: a short header, a short run
// table or a run pointing outside the data section is a hard error and no
// partial grid is returned.
func DecodeHeightmap(data []byte) (*HeightmapGrid, error) {
	if len(data) < heightmapHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for header", ErrTruncatedHeightmapData, len(data), heightmapHeaderSize)
	}

	var order binary.ByteOrder
	switch {
	case bytes.Equal(data[0:4], heightmapMagicBE[:]):
		order = binary.BigEndian
	case bytes.Equal(data[0:4], heightmapMagicLE[:]):
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("%w: got % x", ErrInvalidHeightmapMagic, data[0:4])
	}

	// data[4] = version major, data[5] = version minor, data[6:8] = padding.
	// No version gate: all observed files are 1.0 and the layout never changed.
	compressedFlag := order.Uint32(data[8:12])
	width := order.Uint16(data[12:14])
	height := order.Uint16(data[14:16])

	// Ambiguous-magic recovery: dimensions beyond any real terrain mean the
	// byte order was misjudged. Re-parse width/height only.
	if width > heightmapMaxDimension || height > heightmapMaxDimension {
		flipped := flipOrder(order)
		width = flipped.Uint16(data[12:14])
		height = flipped.Uint16(data[14:16])
	}

	grid := &HeightmapGrid{
		Width:      width,
		Height:     height,
		MaxHeights: make([]byte, int(width)*int(height)),
		MinHeights: make([]byte, int(width)*int(height)),
	}
	for i := 0; i < 3; i++ {
		grid.BBoxMin[i] = math.Float32frombits(order.Uint32(data[16+4*i:]))
		grid.BBoxMax[i] = math.Float32frombits(order.Uint32(data[28+4*i:]))
	}
	dataLength := order.Uint32(data[40:44])

	if compressedFlag != 0 {
		return decodeCompressedRows(grid, order, data[heightmapHeaderSize:])
	}
	return decodeFullPlanes(grid, dataLength, data[heightmapHeaderSize:])
}

// decodeCompressedRows parses the per-row run table and fills the sparse
// grid. Columns outside a row's run stay at 0.
func decodeCompressedRows(grid *HeightmapGrid, order binary.ByteOrder, rest []byte) (*HeightmapGrid, error) {
	tableSize := int(grid.Height) * compressionHeaderSize
	if len(rest) < tableSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for %d row headers", ErrTruncatedHeightmapData, len(rest), tableSize, grid.Height)
	}

	grid.Compressed = true
	grid.Headers = make([]CompressionHeader, grid.Height)
	for y := range grid.Headers {
		rec := rest[y*compressionHeaderSize:]
		grid.Headers[y] = CompressionHeader{
			Start:      order.Uint16(rec[0:2]),
			Count:      order.Uint16(rec[2:4]),
			DataOffset: order.Uint32(rec[4:8]),
		}
	}

	// The data section holds the max-height bytes in its first half and the
	// min-height bytes in its second, both addressed by DataOffset.
	section := rest[tableSize:]
	half := len(section) / 2

	width := int(grid.Width)
	for y, hdr := range grid.Headers {
		for i := 0; i < int(hdr.Count); i++ {
			x := int(hdr.Start) + i
			if x >= width {
				continue
			}
			off := int(hdr.DataOffset) + i
			if off >= half {
				return nil, fmt.Errorf("%w: row %d run exceeds data section", ErrTruncatedHeightmapData, y)
			}
			grid.MaxHeights[y*width+x] = section[off]
			grid.MinHeights[y*width+x] = section[half+off]
		}
	}

	return grid, nil
}

// decodeFullPlanes parses an uncompressed file: the data section is split
// at dataLength into the max plane followed by the min plane.
func decodeFullPlanes(grid *HeightmapGrid, dataLength uint32, section []byte) (*HeightmapGrid, error) {
	plane := int(grid.Width) * int(grid.Height)
	if int(dataLength) < plane || len(section) < int(dataLength)+plane {
		return nil, fmt.Errorf("%w: %d bytes for two %d-byte planes", ErrTruncatedHeightmapData, len(section), plane)
	}

	copy(grid.MaxHeights, section[:plane])
	copy(grid.MinHeights, section[dataLength:dataLength+uint32(plane)])
	return grid, nil
}

// EncodeHeightmap serializes a grid back to the on-disk format.
// Output is canonical big-endian. For a compressed grid each row gets
// exactly one contiguous run: decoded headers are reused when present,
// otherwise the run is derived from the row's populated column span.
func EncodeHeightmap(grid *HeightmapGrid) ([]byte, error) {
	plane := int(grid.Width) * int(grid.Height)
	if len(grid.MaxHeights) != plane || len(grid.MinHeights) != plane {
		return nil, fmt.Errorf("%w: %dx%d grid with %d/%d plane bytes", ErrInvalidHeightmapShape, grid.Width, grid.Height, len(grid.MaxHeights), len(grid.MinHeights))
	}

	buf := new(bytes.Buffer)
	buf.Write(heightmapMagicBE[:])
	buf.WriteByte(heightmapVersionMajor)
	buf.WriteByte(heightmapVersionMinor)
	buf.Write([]byte{0, 0})

	order := binary.BigEndian

	var compressedFlag uint32
	if grid.Compressed {
		compressedFlag = 1
	}
	binary.Write(buf, order, compressedFlag)
	binary.Write(buf, order, grid.Width)
	binary.Write(buf, order, grid.Height)
	binary.Write(buf, order, grid.BBoxMin)
	binary.Write(buf, order, grid.BBoxMax)

	if !grid.Compressed {
		binary.Write(buf, order, uint32(plane))
		buf.Write(grid.MaxHeights)
		buf.Write(grid.MinHeights)
		return buf.Bytes(), nil
	}

	var headers []CompressionHeader
	if grid.Headers != nil {
		headers = append(headers, grid.Headers...)
	} else {
		headers = deriveRowRuns(grid)
	}
	if len(headers) != int(grid.Height) {
		return nil, fmt.Errorf("%w: %d row headers for height %d", ErrInvalidHeightmapShape, len(headers), grid.Height)
	}

	// Reassign offsets sequentially so the runs pack tightly.
	var total uint32
	for y := range headers {
		headers[y].DataOffset = total
		total += uint32(headers[y].Count)
	}

	binary.Write(buf, order, total)
	for _, hdr := range headers {
		binary.Write(buf, order, hdr.Start)
		binary.Write(buf, order, hdr.Count)
		binary.Write(buf, order, hdr.DataOffset)
	}

	maxHalf := make([]byte, total)
	minHalf := make([]byte, total)
	width := int(grid.Width)
	for y, hdr := range headers {
		for i := 0; i < int(hdr.Count); i++ {
			x := int(hdr.Start) + i
			if x >= width {
				continue
			}
			off := int(hdr.DataOffset) + i
			maxHalf[off] = grid.MaxHeights[y*width+x]
			minHalf[off] = grid.MinHeights[y*width+x]
		}
	}
	buf.Write(maxHalf)
	buf.Write(minHalf)

	return buf.Bytes(), nil
}

// deriveRowRuns computes one run per row spanning the populated columns.
// The on-wire format cannot express multiple runs in a row, so interior
// zeros inside the span are stored explicitly.
func deriveRowRuns(grid *HeightmapGrid) []CompressionHeader {
	width := int(grid.Width)
	headers := make([]CompressionHeader, grid.Height)

	for y := range headers {
		first, last := -1, -1
		for x := 0; x < width; x++ {
			idx := y*width + x
			if grid.MaxHeights[idx] != 0 || grid.MinHeights[idx] != 0 {
				if first < 0 {
					first = x
				}
				last = x
			}
		}
		if first >= 0 {
			headers[y] = CompressionHeader{Start: uint16(first), Count: uint16(last - first + 1)}
		}
	}

	return headers
}

// DecodeHeightmapFile parses a heightmap file from disk.
func DecodeHeightmapFile(path string) (*HeightmapGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading heightmap file: %w", err)
	}
	return DecodeHeightmap(data)
}

// flipOrder returns the opposite byte order.
func flipOrder(order binary.ByteOrder) binary.ByteOrder {
	if order == binary.ByteOrder(binary.BigEndian) {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
