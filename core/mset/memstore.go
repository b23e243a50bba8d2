// core/mset/memstore.go
package mset

import "fmt"

// MemStore is an in-memory Store used for synthesis and tests.
type MemStore struct {
	tables map[string]*MemTable
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore { return &MemStore{tables: map[string]*MemTable{}} }

// Add registers a table under name, replacing any previous one.
func (m *MemStore) Add(name string, t *MemTable) { m.tables[name] = t }

// Table implements Store.
func (m *MemStore) Table(name string) (Table, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing table %s", ErrCorruptTable, name)
	}
	return t, nil
}

// MemTable holds one table's columns by kind. Array columns store cells
// flattened back to back; Shapes records the per-cell shape.
type MemTable struct {
	NRows  int
	Shapes map[string][]int

	F64 map[string][]float64
	F32 map[string][]float32
	I32 map[string][]int32
	C64 map[string][]complex64
	B   map[string][]bool
	Str map[string][]string
}

// NewMemTable returns a table with nrows rows and no columns.
func NewMemTable(nrows int) *MemTable {
	return &MemTable{
		NRows:  nrows,
		Shapes: map[string][]int{},
		F64:    map[string][]float64{},
		F32:    map[string][]float32{},
		I32:    map[string][]int32{},
		C64:    map[string][]complex64{},
		B:      map[string][]bool{},
		Str:    map[string][]string{},
	}
}

func (t *MemTable) NumRows() int { return t.NRows }

func (t *MemTable) Has(col string) bool {
	_, ok := t.Shapes[col]
	if ok {
		return true
	}
	_, ok = t.Str[col]
	return ok
}

func (t *MemTable) Shape(col string) []int {
	if s, ok := t.Shapes[col]; ok {
		return s
	}
	if _, ok := t.Str[col]; ok {
		return []int{}
	}
	return nil
}

func (t *MemTable) missing(col string) error {
	return fmt.Errorf("%w: missing column %s", ErrCorruptTable, col)
}

func (t *MemTable) Floats(col string) ([]float64, error) {
	v, ok := t.F64[col]
	if !ok {
		return nil, t.missing(col)
	}
	return v, nil
}

func (t *MemTable) Ints(col string) ([]int32, error) {
	v, ok := t.I32[col]
	if !ok {
		return nil, t.missing(col)
	}
	return v, nil
}

func (t *MemTable) Strings(col string) ([]string, error) {
	v, ok := t.Str[col]
	if !ok {
		return nil, t.missing(col)
	}
	return v, nil
}

func (t *MemTable) cellBounds(col string, row int, n int) (int, int, error) {
	shape, ok := t.Shapes[col]
	if !ok {
		return 0, 0, t.missing(col)
	}
	cl := cellLen(shape)
	lo, hi := row*cl, (row+1)*cl
	if row < 0 || row >= t.NRows || hi > n {
		return 0, 0, fmt.Errorf("%w: column %s row %d out of range", ErrCorruptTable, col, row)
	}
	return lo, hi, nil
}

func (t *MemTable) CellFloats(col string, row int) ([]float64, error) {
	v, ok := t.F64[col]
	if !ok {
		return nil, t.missing(col)
	}
	lo, hi, err := t.cellBounds(col, row, len(v))
	if err != nil {
		return nil, err
	}
	return v[lo:hi], nil
}

func (t *MemTable) CellFloat32s(col string, row int) ([]float32, error) {
	v, ok := t.F32[col]
	if !ok {
		return nil, t.missing(col)
	}
	lo, hi, err := t.cellBounds(col, row, len(v))
	if err != nil {
		return nil, err
	}
	return v[lo:hi], nil
}

func (t *MemTable) CellComplex(col string, row int) ([]complex64, error) {
	v, ok := t.C64[col]
	if !ok {
		return nil, t.missing(col)
	}
	lo, hi, err := t.cellBounds(col, row, len(v))
	if err != nil {
		return nil, err
	}
	return v[lo:hi], nil
}

func (t *MemTable) CellBools(col string, row int) ([]bool, error) {
	v, ok := t.B[col]
	if !ok {
		return nil, t.missing(col)
	}
	lo, hi, err := t.cellBounds(col, row, len(v))
	if err != nil {
		return nil, err
	}
	return v[lo:hi], nil
}
