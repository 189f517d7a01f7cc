// Package codec implements the asset codecs used by the staging pipeline.
// Tangent-space generation: per-vertex tangents with handedness, used to
// upgrade meshes for normal mapping.
package codec

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrTangentInputShape is returned when the attribute arrays passed to
// GenerateTangents do not agree on the vertex or triangle count.
var ErrTangentInputShape = errors.New("tangent input shape mismatch")

const (
	// Triangles whose UV mapping collapses below this determinant
	// contribute nothing.
	tangentDegenerateUV = 1e-20
	// Accumulated tangents shorter than this after orthogonalization fall
	// back to a normal-orthogonal default.
	tangentMinLength = 1e-8
)

// GenerateTangents computes one tangent per vertex from positions
// [N*3], uvs [N*2], triangle indices and normals [N*3]. The result is
// [N*4]: tangent xyz plus handedness in {-1, +1}.
//
// Triangles are accumulated in index order, so the output is
// bit-reproducible for identical inputs.
func GenerateTangents(positions, uvs []float32, indices []uint32, normals []float32) ([]float32, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("%w: positions length %d not a multiple of 3", ErrTangentInputShape, len(positions))
	}
	n := len(positions) / 3
	if len(normals) != n*3 {
		return nil, fmt.Errorf("%w: normals length %d, want %d", ErrTangentInputShape, len(normals), n*3)
	}
	if len(uvs) != n*2 {
		return nil, fmt.Errorf("%w: uvs length %d, want %d", ErrTangentInputShape, len(uvs), n*2)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d not a multiple of 3", ErrTangentInputShape, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= n {
			return nil, fmt.Errorf("%w: index %d references vertex %d of %d", ErrTangentInputShape, i, idx, n)
		}
	}

	tan1 := make([]mgl32.Vec3, n)
	tan2 := make([]mgl32.Vec3, n)

	for t := 0; t < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]

		p0 := vec3At(positions, i0)
		p1 := vec3At(positions, i1)
		p2 := vec3At(positions, i2)

		u0x, u0y := uvs[2*i0], uvs[2*i0+1]
		u1x, u1y := uvs[2*i1], uvs[2*i1+1]
		u2x, u2y := uvs[2*i2], uvs[2*i2+1]

		e1 := p1.Sub(p0)
		e2 := p2.Sub(p0)

		s1, t1 := u1x-u0x, u1y-u0y
		s2, t2 := u2x-u0x, u2y-u0y

		r := s1*t2 - s2*t1
		if mgl32.Abs(r) <= tangentDegenerateUV {
			// Degenerate UV mapping, skip this triangle's contribution.
			continue
		}
		inv := 1 / r

		sdir := e1.Mul(t2).Sub(e2.Mul(t1)).Mul(inv)
		tdir := e2.Mul(s1).Sub(e1.Mul(s2)).Mul(inv)

		tan1[i0] = tan1[i0].Add(sdir)
		tan1[i1] = tan1[i1].Add(sdir)
		tan1[i2] = tan1[i2].Add(sdir)
		tan2[i0] = tan2[i0].Add(tdir)
		tan2[i1] = tan2[i1].Add(tdir)
		tan2[i2] = tan2[i2].Add(tdir)
	}

	out := make([]float32, n*4)
	for i := 0; i < n; i++ {
		normal := vec3At(normals, uint32(i))

		// Gram-Schmidt orthogonalize against the vertex normal.
		tangent := tan1[i].Sub(normal.Mul(normal.Dot(tan1[i])))
		if tangent.Len() > tangentMinLength {
			tangent = tangent.Normalize()
		} else {
			// Unreferenced vertex, or every contributing triangle was
			// UV-degenerate. The reference axis avoids a zero cross product
			// near axis-aligned normals.
			ref := mgl32.Vec3{1, 0, 0}
			if mgl32.Abs(normal.X()) > 0.9 {
				ref = mgl32.Vec3{0, 1, 0}
			}
			tangent = ref.Cross(normal).Normalize()
		}

		handedness := float32(1)
		if normal.Cross(tangent).Dot(tan2[i]) < 0 {
			handedness = -1
		}

		out[4*i] = tangent.X()
		out[4*i+1] = tangent.Y()
		out[4*i+2] = tangent.Z()
		out[4*i+3] = handedness
	}

	return out, nil
}

// vec3At loads vertex i of a flat [N*3] attribute array.
func vec3At(a []float32, i uint32) mgl32.Vec3 {
	return mgl32.Vec3{a[3*i], a[3*i+1], a[3*i+2]}
}
