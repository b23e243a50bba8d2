// core/mset/dir.go
package mset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Column kinds of the directory export format.
const (
	kindF64  = "f64"
	kindF32  = "f32"
	kindI32  = "i32"
	kindC64  = "c64"
	kindBool = "b"
)

type colDesc struct {
	Kind  string `json:"kind"`
	Shape []int  `json:"shape"`
}

type tableDesc struct {
	NRows   int                 `json:"nrows"`
	Columns map[string]colDesc  `json:"columns"`
	Strings map[string][]string `json:"strings,omitempty"`
}

// DirStore reads a measurement set exported as a directory of tables: one
// subdirectory per table holding a table.json descriptor plus one raw
// little-endian .col file per bulk column. String columns live in the
// descriptor itself.
type DirStore struct {
	root  string
	files map[string]*os.File
}

// NewDirStore returns a store rooted at path. It does not touch the disk
// until a table is requested.
func NewDirStore(path string) *DirStore {
	return &DirStore{root: path, files: map[string]*os.File{}}
}

// Close releases any cached column file handles.
func (d *DirStore) Close() error {
	var first error
	for _, fh := range d.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.files = map[string]*os.File{}
	return first
}

// Table implements Store.
func (d *DirStore) Table(name string) (Table, error) {
	dir := filepath.Join(d.root, name)
	raw, err := os.ReadFile(filepath.Join(dir, "table.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: missing table %s", ErrCorruptTable, name)
		}
		return nil, fmt.Errorf("%w: table %s: %v", ErrCorruptTable, name, err)
	}
	var desc tableDesc
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("%w: table %s: %v", ErrCorruptTable, name, err)
	}
	if desc.NRows < 0 {
		return nil, fmt.Errorf("%w: table %s: negative row count", ErrCorruptTable, name)
	}
	return &dirTable{store: d, name: name, dir: dir, desc: desc}, nil
}

type dirTable struct {
	store *DirStore
	name  string
	dir   string
	desc  tableDesc
}

func (t *dirTable) NumRows() int { return t.desc.NRows }

func (t *dirTable) Has(col string) bool {
	if _, ok := t.desc.Columns[col]; ok {
		return true
	}
	_, ok := t.desc.Strings[col]
	return ok
}

func (t *dirTable) Shape(col string) []int {
	if c, ok := t.desc.Columns[col]; ok {
		return c.Shape
	}
	if _, ok := t.desc.Strings[col]; ok {
		return []int{}
	}
	return nil
}

func kindSize(kind string) int {
	switch kind {
	case kindF64, kindC64:
		return 8
	case kindF32, kindI32:
		return 4
	case kindBool:
		return 1
	}
	return 0
}

func (t *dirTable) col(col string, wantKind string) (colDesc, *os.File, error) {
	desc, ok := t.desc.Columns[col]
	if !ok {
		return colDesc{}, nil, fmt.Errorf("%w: table %s: missing column %s", ErrCorruptTable, t.name, col)
	}
	if desc.Kind != wantKind {
		return colDesc{}, nil, fmt.Errorf("%w: table %s: column %s is %s, want %s",
			ErrUnsupportedLayout, t.name, col, desc.Kind, wantKind)
	}
	key := t.name + "/" + col
	if fh, ok := t.store.files[key]; ok {
		return desc, fh, nil
	}
	fh, err := os.Open(filepath.Join(t.dir, col+".col"))
	if err != nil {
		return colDesc{}, nil, fmt.Errorf("%w: table %s: column %s: %v", ErrCorruptTable, t.name, col, err)
	}
	t.store.files[key] = fh
	return desc, fh, nil
}

// readCell reads row's cell (count elements of elemSize bytes) into buf.
func (t *dirTable) readCell(col string, wantKind string, row int) ([]byte, error) {
	desc, fh, err := t.col(col, wantKind)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= t.desc.NRows {
		return nil, fmt.Errorf("%w: table %s: column %s row %d out of range", ErrCorruptTable, t.name, col, row)
	}
	n := cellLen(desc.Shape) * kindSize(desc.Kind)
	buf := make([]byte, n)
	if _, err := fh.ReadAt(buf, int64(row)*int64(n)); err != nil {
		return nil, fmt.Errorf("%w: table %s: column %s row %d: %v", ErrCorruptTable, t.name, col, row, err)
	}
	return buf, nil
}

// readAll reads the whole column file.
func (t *dirTable) readAll(col string, wantKind string) ([]byte, error) {
	desc, fh, err := t.col(col, wantKind)
	if err != nil {
		return nil, err
	}
	n := t.desc.NRows * cellLen(desc.Shape) * kindSize(desc.Kind)
	buf := make([]byte, n)
	if _, err := fh.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("%w: table %s: column %s: %v", ErrCorruptTable, t.name, col, err)
	}
	return buf, nil
}

func (t *dirTable) Floats(col string) ([]float64, error) {
	buf, err := t.readAll(col, kindF64)
	if err != nil {
		return nil, err
	}
	return decodeF64(buf), nil
}

func (t *dirTable) Ints(col string) ([]int32, error) {
	buf, err := t.readAll(col, kindI32)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

func (t *dirTable) Strings(col string) ([]string, error) {
	v, ok := t.desc.Strings[col]
	if !ok {
		return nil, fmt.Errorf("%w: table %s: missing column %s", ErrCorruptTable, t.name, col)
	}
	return v, nil
}

func (t *dirTable) CellFloats(col string, row int) ([]float64, error) {
	buf, err := t.readCell(col, kindF64, row)
	if err != nil {
		return nil, err
	}
	return decodeF64(buf), nil
}

func (t *dirTable) CellFloat32s(col string, row int) ([]float32, error) {
	buf, err := t.readCell(col, kindF32, row)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

func (t *dirTable) CellComplex(col string, row int) ([]complex64, error) {
	buf, err := t.readCell(col, kindC64, row)
	if err != nil {
		return nil, err
	}
	out := make([]complex64, len(buf)/8)
	for i := range out {
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8+4:]))
		out[i] = complex(re, im)
	}
	return out, nil
}

func (t *dirTable) CellBools(col string, row int) ([]bool, error) {
	buf, err := t.readCell(col, kindBool, row)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(buf))
	for i, b := range buf {
		out[i] = b != 0
	}
	return out, nil
}

func decodeF64(buf []byte) []float64 {
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out
}
