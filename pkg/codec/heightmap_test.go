package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

var (
	testBBoxMin = [3]float32{-10, -20, -30}
	testBBoxMax = [3]float32{40, 50, 60}
)

// writeHeightmapHeader writes the fixed 44-byte header in the given order.
func writeHeightmapHeader(buf *bytes.Buffer, order binary.ByteOrder, magic string, compressed uint32, width, height uint16, dataLength uint32) {
	buf.WriteString(magic)
	buf.WriteByte(1) // version major
	buf.WriteByte(0) // version minor
	buf.Write([]byte{0, 0})
	binary.Write(buf, order, compressed)
	binary.Write(buf, order, width)
	binary.Write(buf, order, height)
	binary.Write(buf, order, testBBoxMin)
	binary.Write(buf, order, testBBoxMax)
	binary.Write(buf, order, dataLength)
}

func TestDecodeHeightmap_UncompressedBigEndian(t *testing.T) {
	buf := new(bytes.Buffer)
	writeHeightmapHeader(buf, binary.BigEndian, "HMAP", 0, 2, 2, 4)
	buf.Write([]byte{1, 2, 3, 4}) // max plane
	buf.Write([]byte{5, 6, 7, 8}) // min plane

	grid, err := DecodeHeightmap(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeightmap failed: %v", err)
	}

	if grid.Width != 2 || grid.Height != 2 {
		t.Fatalf("expected 2x2 grid, got %dx%d", grid.Width, grid.Height)
	}
	if grid.Compressed {
		t.Error("expected uncompressed grid")
	}
	if !bytes.Equal(grid.MaxHeights, []byte{1, 2, 3, 4}) {
		t.Errorf("max plane = %v", grid.MaxHeights)
	}
	if !bytes.Equal(grid.MinHeights, []byte{5, 6, 7, 8}) {
		t.Errorf("min plane = %v", grid.MinHeights)
	}
	if grid.BBoxMin != testBBoxMin || grid.BBoxMax != testBBoxMax {
		t.Errorf("bbox = %v %v", grid.BBoxMin, grid.BBoxMax)
	}
}

func TestDecodeHeightmap_LittleEndian(t *testing.T) {
	buf := new(bytes.Buffer)
	writeHeightmapHeader(buf, binary.LittleEndian, "PAMH", 0, 2, 1, 2)
	buf.Write([]byte{11, 12})
	buf.Write([]byte{13, 14})

	grid, err := DecodeHeightmap(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeightmap failed: %v", err)
	}
	if grid.Width != 2 || grid.Height != 1 {
		t.Fatalf("expected 2x1 grid, got %dx%d", grid.Width, grid.Height)
	}
	if !bytes.Equal(grid.MaxHeights, []byte{11, 12}) || !bytes.Equal(grid.MinHeights, []byte{13, 14}) {
		t.Errorf("planes = %v %v", grid.MaxHeights, grid.MinHeights)
	}
	if grid.BBoxMin != testBBoxMin {
		t.Errorf("bbox min = %v, want %v", grid.BBoxMin, testBBoxMin)
	}
}

func TestDecodeHeightmap_InvalidMagic(t *testing.T) {
	buf := new(bytes.Buffer)
	writeHeightmapHeader(buf, binary.BigEndian, "XXXX", 0, 1, 1, 1)
	buf.Write([]byte{0, 0})

	_, err := DecodeHeightmap(buf.Bytes())
	if !errors.Is(err, ErrInvalidHeightmapMagic) {
		t.Fatalf("expected ErrInvalidHeightmapMagic, got %v", err)
	}
}

func TestDecodeHeightmap_TruncatedHeader(t *testing.T) {
	_, err := DecodeHeightmap([]byte("HMAP"))
	if !errors.Is(err, ErrTruncatedHeightmapData) {
		t.Fatalf("expected ErrTruncatedHeightmapData, got %v", err)
	}
}

func TestDecodeHeightmap_TruncatedRunTable(t *testing.T) {
	// Compressed flag set but no room for the two row headers.
	buf := new(bytes.Buffer)
	writeHeightmapHeader(buf, binary.BigEndian, "HMAP", 1, 2, 2, 0)
	buf.Write([]byte{0, 0, 0, 0}) // half a row header

	_, err := DecodeHeightmap(buf.Bytes())
	if !errors.Is(err, ErrTruncatedHeightmapData) {
		t.Fatalf("expected ErrTruncatedHeightmapData, got %v", err)
	}
}

func TestDecodeHeightmap_CompressedSparseRows(t *testing.T) {
	// Row 0 has a run covering columns 1..2, row 1 is empty (count=0).
	buf := new(bytes.Buffer)
	writeHeightmapHeader(buf, binary.BigEndian, "HMAP", 1, 4, 2, 2)

	// Row headers: start, count, dataOffset.
	binary.Write(buf, binary.BigEndian, uint16(1))
	binary.Write(buf, binary.BigEndian, uint16(2))
	binary.Write(buf, binary.BigEndian, uint32(0))
	binary.Write(buf, binary.BigEndian, uint16(0))
	binary.Write(buf, binary.BigEndian, uint16(0))
	binary.Write(buf, binary.BigEndian, uint32(0))

	buf.Write([]byte{10, 20}) // max half
	buf.Write([]byte{30, 40}) // min half

	grid, err := DecodeHeightmap(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeightmap failed: %v", err)
	}

	if !grid.Compressed {
		t.Error("expected compressed grid")
	}
	if !bytes.Equal(grid.MaxHeights, []byte{0, 10, 20, 0, 0, 0, 0, 0}) {
		t.Errorf("max plane = %v", grid.MaxHeights)
	}
	if !bytes.Equal(grid.MinHeights, []byte{0, 30, 40, 0, 0, 0, 0, 0}) {
		t.Errorf("min plane = %v", grid.MinHeights)
	}
	if len(grid.Headers) != 2 || grid.Headers[0] != (CompressionHeader{Start: 1, Count: 2}) {
		t.Errorf("headers = %v", grid.Headers)
	}
}

func TestDecodeHeightmap_RunBeyondDataSection(t *testing.T) {
	buf := new(bytes.Buffer)
	writeHeightmapHeader(buf, binary.BigEndian, "HMAP", 1, 4, 1, 0)
	binary.Write(buf, binary.BigEndian, uint16(0))
	binary.Write(buf, binary.BigEndian, uint16(4))
	binary.Write(buf, binary.BigEndian, uint32(0))
	buf.Write([]byte{1, 2}) // only one byte per half for a 4-column run

	_, err := DecodeHeightmap(buf.Bytes())
	if !errors.Is(err, ErrTruncatedHeightmapData) {
		t.Fatalf("expected ErrTruncatedHeightmapData, got %v", err)
	}
}

func TestDecodeHeightmap_EndiannessRecovery(t *testing.T) {
	// A little-endian magic with big-endian dimensions: 41 reads as 10496
	// under the wrong order, which exceeds the sanity bound and triggers
	// the width/height re-parse.
	buf := new(bytes.Buffer)
	buf.WriteString("PAMH")
	buf.Write([]byte{1, 0, 0, 0})
	binary.Write(buf, binary.BigEndian, uint32(1)) // still non-zero read as LE
	binary.Write(buf, binary.BigEndian, uint16(41))
	binary.Write(buf, binary.BigEndian, uint16(41))
	binary.Write(buf, binary.BigEndian, [3]float32{})
	binary.Write(buf, binary.BigEndian, [3]float32{})
	binary.Write(buf, binary.BigEndian, uint32(0))

	// 41 empty rows, endian-neutral (all zero), and an empty data section.
	buf.Write(make([]byte, 41*compressionHeaderSize))

	grid, err := DecodeHeightmap(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeightmap failed: %v", err)
	}
	if grid.Width != 41 || grid.Height != 41 {
		t.Fatalf("expected recovered 41x41 grid, got %dx%d", grid.Width, grid.Height)
	}
}

func TestEncodeHeightmap_RoundTripCompressed(t *testing.T) {
	grid := &HeightmapGrid{
		Width:      4,
		Height:     3,
		BBoxMin:    testBBoxMin,
		BBoxMax:    testBBoxMax,
		MaxHeights: make([]byte, 12),
		MinHeights: make([]byte, 12),
		Compressed: true,
	}

	// Row 0 fully populated, row 1 empty, row 2 partial span.
	copy(grid.MaxHeights[0:4], []byte{9, 8, 7, 6})
	copy(grid.MinHeights[0:4], []byte{1, 2, 3, 4})
	grid.MaxHeights[4*2+2] = 42
	grid.MinHeights[4*2+2] = 24

	data, err := EncodeHeightmap(grid)
	if err != nil {
		t.Fatalf("EncodeHeightmap failed: %v", err)
	}

	decoded, err := DecodeHeightmap(data)
	if err != nil {
		t.Fatalf("DecodeHeightmap failed: %v", err)
	}

	if !bytes.Equal(decoded.MaxHeights, grid.MaxHeights) {
		t.Errorf("max plane = %v, want %v", decoded.MaxHeights, grid.MaxHeights)
	}
	if !bytes.Equal(decoded.MinHeights, grid.MinHeights) {
		t.Errorf("min plane = %v, want %v", decoded.MinHeights, grid.MinHeights)
	}
	if decoded.BBoxMin != grid.BBoxMin || decoded.BBoxMax != grid.BBoxMax {
		t.Errorf("bbox = %v %v", decoded.BBoxMin, decoded.BBoxMax)
	}

	// One run per row, spanning exactly the populated columns.
	wantRuns := []CompressionHeader{
		{Start: 0, Count: 4, DataOffset: 0},
		{Start: 0, Count: 0, DataOffset: 4},
		{Start: 2, Count: 1, DataOffset: 4},
	}
	for i, want := range wantRuns {
		if decoded.Headers[i] != want {
			t.Errorf("row %d header = %v, want %v", i, decoded.Headers[i], want)
		}
	}
}

func TestEncodeHeightmap_RoundTripUncompressed(t *testing.T) {
	grid := &HeightmapGrid{
		Width:      2,
		Height:     2,
		BBoxMin:    testBBoxMin,
		BBoxMax:    testBBoxMax,
		MaxHeights: []byte{1, 2, 3, 4},
		MinHeights: []byte{5, 6, 7, 8},
	}

	data, err := EncodeHeightmap(grid)
	if err != nil {
		t.Fatalf("EncodeHeightmap failed: %v", err)
	}
	decoded, err := DecodeHeightmap(data)
	if err != nil {
		t.Fatalf("DecodeHeightmap failed: %v", err)
	}

	if !bytes.Equal(decoded.MaxHeights, grid.MaxHeights) || !bytes.Equal(decoded.MinHeights, grid.MinHeights) {
		t.Errorf("planes = %v %v", decoded.MaxHeights, decoded.MinHeights)
	}
}

func TestEncodeHeightmap_ShapeMismatch(t *testing.T) {
	grid := &HeightmapGrid{
		Width:      4,
		Height:     4,
		MaxHeights: make([]byte, 3), // wrong
		MinHeights: make([]byte, 16),
	}

	_, err := EncodeHeightmap(grid)
	if !errors.Is(err, ErrInvalidHeightmapShape) {
		t.Fatalf("expected ErrInvalidHeightmapShape, got %v", err)
	}
}

func TestHeightmapGrid_At(t *testing.T) {
	grid := &HeightmapGrid{
		Width:      2,
		Height:     2,
		MaxHeights: []byte{1, 2, 3, 4},
		MinHeights: []byte{5, 6, 7, 8},
	}

	if got := grid.MaxAt(1, 1); got != 4 {
		t.Errorf("MaxAt(1,1) = %d, want 4", got)
	}
	if got := grid.MinAt(0, 1); got != 7 {
		t.Errorf("MinAt(0,1) = %d, want 7", got)
	}
	if grid.MaxAt(-1, 0) != 0 || grid.MaxAt(2, 0) != 0 || grid.MinAt(0, 2) != 0 {
		t.Error("out-of-bounds lookups should return 0")
	}
}
