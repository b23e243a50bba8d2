// core/mset/store.go
package mset

// Store gives read-only access to the tables of one measurement set. The
// concrete storage backend (directory export, in-memory synthesis) is
// swappable without touching the conversion logic.
type Store interface {
	// Table returns the named table, or an ErrCorruptTable-wrapped error if
	// the store has no such table.
	Table(name string) (Table, error)
}

// Table is read-only access to one column table. Whole-column accessors
// return the column flattened row-major; Cell accessors return one row's
// array cell and are usable for bulk columns without loading the column.
type Table interface {
	NumRows() int
	Has(col string) bool
	// Shape returns the per-cell array shape of col (empty for scalars),
	// or nil if the column does not exist.
	Shape(col string) []int

	Floats(col string) ([]float64, error)
	Ints(col string) ([]int32, error)
	Strings(col string) ([]string, error)

	CellFloats(col string, row int) ([]float64, error)
	CellFloat32s(col string, row int) ([]float32, error)
	CellComplex(col string, row int) ([]complex64, error)
	CellBools(col string, row int) ([]bool, error)
}

func cellLen(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
