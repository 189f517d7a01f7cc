package codec

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// flatQuad returns a unit quad in the XY plane with axis-aligned UVs and a
// shared +Z normal: two triangles, four vertices.
func flatQuad() (positions, uvs []float32, indices []uint32, normals []float32) {
	positions = []float32{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		1, 1, 0,
	}
	uvs = []float32{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
	}
	indices = []uint32{0, 1, 2, 2, 1, 3}
	normals = []float32{
		0, 0, 1,
		0, 0, 1,
		0, 0, 1,
		0, 0, 1,
	}
	return
}

func tangentLen(t []float32, i int) float64 {
	x, y, z := float64(t[4*i]), float64(t[4*i+1]), float64(t[4*i+2])
	return math.Sqrt(x*x + y*y + z*z)
}

func TestGenerateTangents_FlatQuad(t *testing.T) {
	positions, uvs, indices, normals := flatQuad()

	tangents, err := GenerateTangents(positions, uvs, indices, normals)
	if err != nil {
		t.Fatalf("GenerateTangents failed: %v", err)
	}
	if len(tangents) != 16 {
		t.Fatalf("tangents length = %d, want 16", len(tangents))
	}

	for i := 0; i < 4; i++ {
		if l := tangentLen(tangents, i); math.Abs(l-1) > 1e-5 {
			t.Errorf("vertex %d tangent length = %f, want 1", i, l)
		}

		// Orthogonal to the +Z normal.
		dot := float64(tangents[4*i+2]) // dot(n, t) with n = (0,0,1)
		if math.Abs(dot) > 1e-5 {
			t.Errorf("vertex %d tangent not orthogonal to normal: dot = %f", i, dot)
		}

		// Axis-aligned UVs put the tangent along +X with positive handedness.
		if tangents[4*i] < 0.999 {
			t.Errorf("vertex %d tangent = (%f,%f,%f), want +X", i, tangents[4*i], tangents[4*i+1], tangents[4*i+2])
		}
		if tangents[4*i+3] != 1 {
			t.Errorf("vertex %d handedness = %f, want +1", i, tangents[4*i+3])
		}
	}
}

func TestGenerateTangents_DegenerateUVs(t *testing.T) {
	// All three UVs identical: the triangle contributes nothing and each
	// vertex falls back to the normal-orthogonal default.
	positions := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	}
	uvs := []float32{
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
	}
	indices := []uint32{0, 1, 2}
	normals := []float32{
		0, 0, 1,
		0, 0, 1,
		0, 0, 1,
	}

	tangents, err := GenerateTangents(positions, uvs, indices, normals)
	if err != nil {
		t.Fatalf("GenerateTangents failed: %v", err)
	}

	// refAxis (1,0,0) crossed with (0,0,1) gives (0,-1,0).
	for i := 0; i < 3; i++ {
		got := [4]float32{tangents[4*i], tangents[4*i+1], tangents[4*i+2], tangents[4*i+3]}
		if got != [4]float32{0, -1, 0, 1} {
			t.Errorf("vertex %d tangent = %v, want fallback (0,-1,0,+1)", i, got)
		}
	}
}

func TestGenerateTangents_FallbackNearAxisNormal(t *testing.T) {
	// An unreferenced vertex with a nearly X-aligned normal must use the
	// (0,1,0) reference axis to keep the cross product well-conditioned.
	positions := []float32{0, 0, 0}
	uvs := []float32{0, 0}
	normals := []float32{1, 0, 0}

	tangents, err := GenerateTangents(positions, uvs, nil, normals)
	if err != nil {
		t.Fatalf("GenerateTangents failed: %v", err)
	}

	// (0,1,0) x (1,0,0) = (0,0,-1)
	got := [3]float32{tangents[0], tangents[1], tangents[2]}
	if got != [3]float32{0, 0, -1} {
		t.Errorf("tangent = %v, want (0,0,-1)", got)
	}
}

func TestGenerateTangents_MirroredUVsFlipHandedness(t *testing.T) {
	// Mirroring U reverses the tangent direction and the handedness sign.
	positions, uvs, indices, normals := flatQuad()
	for i := 0; i < 4; i++ {
		uvs[2*i] = 1 - uvs[2*i]
	}

	tangents, err := GenerateTangents(positions, uvs, indices, normals)
	if err != nil {
		t.Fatalf("GenerateTangents failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if tangents[4*i] > -0.999 {
			t.Errorf("vertex %d tangent x = %f, want -X after mirroring", i, tangents[4*i])
		}
		if tangents[4*i+3] != -1 {
			t.Errorf("vertex %d handedness = %f, want -1", i, tangents[4*i+3])
		}
	}
}

func TestGenerateTangents_Deterministic(t *testing.T) {
	positions, uvs, indices, normals := flatQuad()

	a, err := GenerateTangents(positions, uvs, indices, normals)
	if err != nil {
		t.Fatalf("GenerateTangents failed: %v", err)
	}
	b, err := GenerateTangents(positions, uvs, indices, normals)
	if err != nil {
		t.Fatalf("GenerateTangents failed: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("repeated runs produced different bits")
	}
}

func TestGenerateTangents_ShapeMismatch(t *testing.T) {
	positions, uvs, indices, normals := flatQuad()

	tests := []struct {
		name string
		call func() ([]float32, error)
	}{
		{"ragged positions", func() ([]float32, error) {
			return GenerateTangents(positions[:4], uvs, indices, normals)
		}},
		{"short normals", func() ([]float32, error) {
			return GenerateTangents(positions, uvs, indices, normals[:6])
		}},
		{"short uvs", func() ([]float32, error) {
			return GenerateTangents(positions, uvs[:3], indices, normals)
		}},
		{"ragged indices", func() ([]float32, error) {
			return GenerateTangents(positions, uvs, indices[:4], normals)
		}},
		{"index out of range", func() ([]float32, error) {
			bad := []uint32{0, 1, 9}
			return GenerateTangents(positions, uvs, bad, normals)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.call(); !errors.Is(err, ErrTangentInputShape) {
				t.Errorf("expected ErrTangentInputShape, got %v", err)
			}
		})
	}
}
