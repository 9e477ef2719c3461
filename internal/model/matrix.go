package model

// Mat4 is a 4x4 matrix stored row-major: element (r, c) is at index r*4+c.
// Translation lives in the last column.
type Mat4 [16]float64

// Identity returns the 4x4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns element (r, c).
func (m Mat4) At(r, c int) float64 {
	return m[r*4+c]
}

// Set assigns element (r, c).
func (m *Mat4) Set(r, c int, v float64) {
	m[r*4+c] = v
}

// Mul returns m * b.
func (m Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * b[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Translation returns the translation column.
func (m Mat4) Translation() (x, y, z float64) {
	return m[3], m[7], m[11]
}

// Rows returns the matrix as four row slices.
func (m Mat4) Rows() [][]float64 {
	rows := make([][]float64, 4)
	for r := 0; r < 4; r++ {
		rows[r] = []float64{m[r*4], m[r*4+1], m[r*4+2], m[r*4+3]}
	}
	return rows
}

// Mat4FromSlice builds a matrix from 16 row-major values.
func Mat4FromSlice(v []float64) (Mat4, bool) {
	var m Mat4
	if len(v) != 16 {
		return m, false
	}
	copy(m[:], v)
	return m, true
}
