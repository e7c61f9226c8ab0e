package solarroof

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

type Mesh struct {
	Header string

	Verts [][3]float64
	Tris  [][3]int
}

// PanelMesh returns a mesh with two triangles per placed panel, wound
// counter-clockwise seen from the panel's front.
func PanelMesh(layouts ...LayoutResult) *Mesh {
	m := &Mesh{Header: "solarroof panels"}
	for _, l := range layouts {
		for _, p := range l.Placements {
			base := len(m.Verts)
			for _, c := range p.Corners(l.PanelWidth, l.PanelLength) {
				m.Verts = append(m.Verts, [3]float64{c.X, c.Y, c.Z})
			}
			m.Tris = append(m.Tris, [3]int{base, base + 1, base + 2}, [3]int{base, base + 2, base + 3})
		}
	}
	return m
}

func (m *Mesh) vert(i int) r3.Vec {
	v := m.Verts[i]
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// WriteSTL writes m as binary STL.
func (m *Mesh) WriteSTL(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var header struct {
		H    [80]byte
		NTri uint32
	}
	copy(header.H[:], m.Header)
	for i := len(m.Header); i < len(header.H); i++ {
		header.H[i] = ' '
	}
	header.NTri = uint32(len(m.Tris))
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}

	triBuf := make([]byte, 4*3*4+2)
	put := func(off int, v r3.Vec) {
		binary.LittleEndian.PutUint32(triBuf[off:], math.Float32bits(float32(v.X)))
		binary.LittleEndian.PutUint32(triBuf[off+4:], math.Float32bits(float32(v.Y)))
		binary.LittleEndian.PutUint32(triBuf[off+8:], math.Float32bits(float32(v.Z)))
	}
	for _, tri := range m.Tris {
		a, b, c := m.vert(tri[0]), m.vert(tri[1]), m.vert(tri[2])
		n, _ := unit(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
		put(0, n)
		put(12, a)
		put(24, b)
		put(36, c)
		if _, err := bw.Write(triBuf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL reads a binary STL file, merging identical vertexes.
func ReadSTL(r io.Reader) (*Mesh, error) {
	m := new(Mesh)

	var header struct {
		H    [80]byte
		NTri uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	m.Header = strings.TrimRight(string(header.H[:]), " \x00")

	vertMap := make(map[[3]float64]int)

	var vert [3]float64
	var tri [3]int
	triBuf := make([]byte, 4*3*4+2)
	for i := 0; i < int(header.NTri); i++ {
		// Read a triangle
		if _, err := io.ReadFull(r, triBuf); err != nil {
			return nil, err
		}
		// Read the vertexes.
		for v := range tri {
			// Read the coordinates of this vertex.
			for c := range vert {
				const start = 3 * 4 // Skip normal
				vert[c] = float64(math.Float32frombits(binary.LittleEndian.Uint32(triBuf[start+12*v+4*c:])))
			}
			// Add the vertex to the vertex set.
			vertIndex, ok := vertMap[vert]
			if !ok {
				vertIndex = len(m.Verts)
				m.Verts = append(m.Verts, vert)
				vertMap[vert] = vertIndex
			}
			tri[v] = vertIndex
		}
		// Add the triangle.
		m.Tris = append(m.Tris, tri)
	}

	return m, nil
}
