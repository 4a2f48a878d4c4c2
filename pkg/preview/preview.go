// Package preview converts an analysis result into render-ready data for
// the frontend viewer: flat polyline arrays for the toolpath (millimeters)
// and, when a stock envelope is supplied, a triangle mesh of the stock box
// produced with the sdfx geometry kernel.
package preview

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"toolpath/pkg/gcode"
	"toolpath/pkg/machine"
)

// stockMeshCells controls marching cubes tessellation resolution for the
// stock box. The box is trivial geometry, so a coarse grid is enough.
const stockMeshCells = 64

// Mesh is a triangle mesh suitable for rendering. All arrays are flat:
// vertices has 3 floats per vertex (x,y,z), normals has 3 floats per
// vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Payload is the JSON-serializable preview sent to the frontend.
type Payload struct {
	// Rapid and Cut are flat polyline arrays in millimeters, six floats
	// per segment: [x0,y0,z0, x1,y1,z1, ...].
	Rapid []float32 `json:"rapid"`
	Cut   []float32 `json:"cut"`

	BBoxNative gcode.BBox `json:"bboxNative"`
	BBoxMm     gcode.BBox `json:"bboxMm"`

	// Stock is the tessellated stock box, present only when an envelope
	// was supplied.
	Stock *Mesh `json:"stock,omitempty"`
}

// Build assembles the preview payload for a finished analysis.
func Build(res *gcode.AnalysisResult, stock *machine.Stock) (*Payload, error) {
	p := &Payload{
		Rapid:      []float32{},
		Cut:        []float32{},
		BBoxNative: res.BoundingBoxNative,
		BBoxMm:     res.BoundingBoxMm,
	}

	for _, s := range res.Segments3DMm {
		flat := []float32{
			float32(s.From.X), float32(s.From.Y), float32(s.From.Z),
			float32(s.To.X), float32(s.To.Y), float32(s.To.Z),
		}
		if s.Kind == gcode.KindRapid {
			p.Rapid = append(p.Rapid, flat...)
		} else {
			p.Cut = append(p.Cut, flat...)
		}
	}

	if stock != nil {
		mesh, err := stockMesh(*stock)
		if err != nil {
			return nil, fmt.Errorf("preview: stock mesh: %w", err)
		}
		p.Stock = mesh
	}

	return p, nil
}

// stockMesh tessellates the stock envelope into a triangle mesh using
// marching cubes. sdf.Box3D centers the box at the origin, so it is
// translated to the top-front-left-origin convention (X,Y from 0, Z down
// from 0).
func stockMesh(s machine.Stock) (*Mesh, error) {
	box, err := sdf.Box3D(v3.Vec{X: s.Length, Y: s.Width, Z: s.Height}, 0)
	if err != nil {
		return nil, err
	}
	m := sdf.Translate3d(v3.Vec{X: s.Length / 2, Y: s.Width / 2, Z: -s.Height / 2})
	solid := sdf.Transform3D(box, m)

	renderer := render.NewMarchingCubesUniform(stockMeshCells)
	triangles := render.ToTriangles(solid, renderer)

	numVerts := len(triangles) * 3
	mesh := &Mesh{
		Vertices: make([]float32, 0, numVerts*3),
		Normals:  make([]float32, 0, numVerts*3),
		Indices:  make([]uint32, 0, numVerts),
	}

	for i, tri := range triangles {
		// Face normal shared by all three vertices.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			mesh.Vertices = append(mesh.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			mesh.Normals = append(mesh.Normals, nx, ny, nz)
			mesh.Indices = append(mesh.Indices, uint32(i*3+j))
		}
	}

	return mesh, nil
}
