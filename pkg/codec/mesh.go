// Package codec implements the asset codecs used by the staging pipeline.
// MSH0: the versioned binary mesh container consumed by the web viewer.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MSH0 format errors.
var (
	ErrInvalidMeshMagic       = errors.New("invalid mesh magic: expected 'MSH0'")
	ErrUnsupportedMeshVersion = errors.New("unsupported mesh version")
	ErrTruncatedMeshData      = errors.New("truncated mesh data")
	ErrMeshShapeMismatch      = errors.New("mesh attribute shape mismatch")
	ErrMeshNotUpgradable      = errors.New("mesh lacks normals or uvs required for tangent upgrade")
)

const meshMagic = "MSH0"
const meshHeaderSize = 20

// MeshFlags is the header bitmask describing which optional attribute
// blocks are present.
type MeshFlags uint32

// Flag bits.
const (
	FlagNormals  MeshFlags = 1 << 0
	FlagUVs      MeshFlags = 1 << 1
	FlagTangents MeshFlags = 1 << 2
)

// Has returns true if all bits in mask are set.
func (f MeshFlags) Has(mask MeshFlags) bool {
	return f&mask == mask
}

// MeshBuffer is an in-memory mesh. Attribute slices are flat row-major:
// Positions and Normals are [vertexCount*3], UVs [vertexCount*2] and
// Tangents [vertexCount*4] (xyz plus handedness in {-1,+1}).
//
// An attribute block is on the wire only when both the version admits it
// and its flag bit is set: normals need version >= 2, uvs version >= 3,
// tangents version >= 4.
type MeshBuffer struct {
	Version     uint32
	VertexCount int
	IndexCount  int
	Flags       MeshFlags
	Positions   []float32
	Normals     []float32
	UVs         []float32
	Tangents    []float32
	Indices     []uint32
}

// hasNormals reports whether the (version, flags) pair implies a normals block.
func (m *MeshBuffer) hasNormals() bool { return m.Version >= 2 && m.Flags.Has(FlagNormals) }

// hasUVs reports whether the (version, flags) pair implies a uvs block.
func (m *MeshBuffer) hasUVs() bool { return m.Version >= 3 && m.Flags.Has(FlagUVs) }

// hasTangents reports whether the (version, flags) pair implies a tangents block.
func (m *MeshBuffer) hasTangents() bool { return m.Version >= 4 && m.Flags.Has(FlagTangents) }

// Validate checks the buffer's internal consistency: version range, flag
// bits matching the arrays actually present, attribute shapes, index
// alignment and index range.
func (m *MeshBuffer) Validate() error {
	if m.Version < 1 || m.Version > 4 {
		return fmt.Errorf("%w: %d", ErrUnsupportedMeshVersion, m.Version)
	}
	if len(m.Positions) != m.VertexCount*3 {
		return fmt.Errorf("%w: positions length %d, want %d", ErrMeshShapeMismatch, len(m.Positions), m.VertexCount*3)
	}
	if len(m.Indices) != m.IndexCount {
		return fmt.Errorf("%w: indices length %d, want %d", ErrMeshShapeMismatch, len(m.Indices), m.IndexCount)
	}
	if m.IndexCount%3 != 0 {
		return fmt.Errorf("%w: index count %d not a multiple of 3", ErrMeshShapeMismatch, m.IndexCount)
	}

	// A flag bit without its array (or the reverse) would desynchronize the
	// header from the payload.
	if m.hasNormals() != (m.Normals != nil) {
		return fmt.Errorf("%w: normals presence does not match version/flags", ErrMeshShapeMismatch)
	}
	if m.hasUVs() != (m.UVs != nil) {
		return fmt.Errorf("%w: uvs presence does not match version/flags", ErrMeshShapeMismatch)
	}
	if m.hasTangents() != (m.Tangents != nil) {
		return fmt.Errorf("%w: tangents presence does not match version/flags", ErrMeshShapeMismatch)
	}

	if m.Normals != nil && len(m.Normals) != m.VertexCount*3 {
		return fmt.Errorf("%w: normals length %d, want %d", ErrMeshShapeMismatch, len(m.Normals), m.VertexCount*3)
	}
	if m.UVs != nil && len(m.UVs) != m.VertexCount*2 {
		return fmt.Errorf("%w: uvs length %d, want %d", ErrMeshShapeMismatch, len(m.UVs), m.VertexCount*2)
	}
	if m.Tangents != nil && len(m.Tangents) != m.VertexCount*4 {
		return fmt.Errorf("%w: tangents length %d, want %d", ErrMeshShapeMismatch, len(m.Tangents), m.VertexCount*4)
	}

	for i, idx := range m.Indices {
		if int(idx) >= m.VertexCount {
			return fmt.Errorf("%w: index %d references vertex %d of %d", ErrMeshShapeMismatch, i, idx, m.VertexCount)
		}
	}

	return nil
}

// EncodeMesh serializes a mesh to MSH0 bytes. The buffer is validated
// first; on any mismatch no bytes are produced.
func EncodeMesh(m *MeshBuffer) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.WriteString(meshMagic)
	binary.Write(buf, binary.LittleEndian, m.Version)
	binary.Write(buf, binary.LittleEndian, uint32(m.VertexCount))
	binary.Write(buf, binary.LittleEndian, uint32(m.IndexCount))
	binary.Write(buf, binary.LittleEndian, uint32(m.Flags))

	binary.Write(buf, binary.LittleEndian, m.Positions)
	if m.hasNormals() {
		binary.Write(buf, binary.LittleEndian, m.Normals)
	}
	if m.hasUVs() {
		binary.Write(buf, binary.LittleEndian, m.UVs)
	}
	if m.hasTangents() {
		binary.Write(buf, binary.LittleEndian, m.Tangents)
	}
	binary.Write(buf, binary.LittleEndian, m.Indices)

	return buf.Bytes(), nil
}

// DecodeMesh parses MSH0 bytes. Only the blocks implied by the header's
// own (version, flags) pair are read; a block a newer version would carry
// is never assumed.
func DecodeMesh(data []byte) (*MeshBuffer, error) {
	if len(data) < meshHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for header", ErrTruncatedMeshData, len(data), meshHeaderSize)
	}
	if string(data[0:4]) != meshMagic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMeshMagic, data[0:4])
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	if version < 1 || version > 4 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMeshVersion, version)
	}

	m := &MeshBuffer{
		Version:     version,
		VertexCount: int(binary.LittleEndian.Uint32(data[8:12])),
		IndexCount:  int(binary.LittleEndian.Uint32(data[12:16])),
		Flags:       MeshFlags(binary.LittleEndian.Uint32(data[16:20])),
	}

	// Size the whole payload from the header before allocating anything so a
	// corrupt header cannot demand gigabytes.
	expected := uint64(m.VertexCount) * 3 * 4
	if m.hasNormals() {
		expected += uint64(m.VertexCount) * 3 * 4
	}
	if m.hasUVs() {
		expected += uint64(m.VertexCount) * 2 * 4
	}
	if m.hasTangents() {
		expected += uint64(m.VertexCount) * 4 * 4
	}
	expected += uint64(m.IndexCount) * 4
	if uint64(len(data)-meshHeaderSize) < expected {
		return nil, fmt.Errorf("%w: %d payload bytes, header implies %d", ErrTruncatedMeshData, len(data)-meshHeaderSize, expected)
	}

	r := bytes.NewReader(data[meshHeaderSize:])

	m.Positions = make([]float32, m.VertexCount*3)
	if err := binary.Read(r, binary.LittleEndian, m.Positions); err != nil {
		return nil, fmt.Errorf("%w: reading positions", ErrTruncatedMeshData)
	}
	if m.hasNormals() {
		m.Normals = make([]float32, m.VertexCount*3)
		if err := binary.Read(r, binary.LittleEndian, m.Normals); err != nil {
			return nil, fmt.Errorf("%w: reading normals", ErrTruncatedMeshData)
		}
	}
	if m.hasUVs() {
		m.UVs = make([]float32, m.VertexCount*2)
		if err := binary.Read(r, binary.LittleEndian, m.UVs); err != nil {
			return nil, fmt.Errorf("%w: reading uvs", ErrTruncatedMeshData)
		}
	}
	if m.hasTangents() {
		m.Tangents = make([]float32, m.VertexCount*4)
		if err := binary.Read(r, binary.LittleEndian, m.Tangents); err != nil {
			return nil, fmt.Errorf("%w: reading tangents", ErrTruncatedMeshData)
		}
	}
	m.Indices = make([]uint32, m.IndexCount)
	if err := binary.Read(r, binary.LittleEndian, m.Indices); err != nil {
		return nil, fmt.Errorf("%w: reading indices", ErrTruncatedMeshData)
	}

	return m, nil
}

// WriteMeshFile writes a mesh to disk atomically: the payload is staged in
// a temporary file in the destination directory and renamed over the
// target only on success. On any failure the destination is untouched and
// the temporary file is removed.
func WriteMeshFile(path string, m *MeshBuffer) error {
	data, err := EncodeMesh(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".msh0-*")
	if err != nil {
		return fmt.Errorf("creating temp mesh file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing mesh file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing mesh file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing mesh file: %w", err)
	}

	return nil
}

// ReadMeshFile parses an MSH0 file from disk.
func ReadMeshFile(path string) (*MeshBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mesh file: %w", err)
	}
	return DecodeMesh(data)
}

// UpgradeMeshFile rewrites a v2/v3 mesh file as v4 with a generated
// tangent block. The file must carry normals and uvs; a file that already
// has tangents is left untouched. The rewrite uses the same atomic
// discipline as WriteMeshFile.
func UpgradeMeshFile(path string) error {
	m, err := ReadMeshFile(path)
	if err != nil {
		return err
	}

	if m.hasTangents() {
		return nil
	}
	if !m.hasNormals() || !m.hasUVs() {
		return fmt.Errorf("%w: version %d flags %#x", ErrMeshNotUpgradable, m.Version, uint32(m.Flags))
	}

	tangents, err := GenerateTangents(m.Positions, m.UVs, m.Indices, m.Normals)
	if err != nil {
		return fmt.Errorf("generating tangents for %s: %w", path, err)
	}

	m.Version = 4
	m.Flags |= FlagTangents
	m.Tangents = tangents
	return WriteMeshFile(path, m)
}
