// core/mset/writedir.go
package mset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// WriteDir serializes tables into the directory export format that DirStore
// reads. It is the counterpart of the project's exporter and is used for
// synthesizing test inputs.
func WriteDir(path string, tables map[string]*MemTable) error {
	for name, t := range tables {
		dir := filepath.Join(path, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		desc := tableDesc{
			NRows:   t.NRows,
			Columns: map[string]colDesc{},
			Strings: map[string][]string{},
		}
		for _, col := range sortedKeys(t.F64) {
			desc.Columns[col] = colDesc{Kind: kindF64, Shape: t.Shapes[col]}
			buf := make([]byte, 8*len(t.F64[col]))
			for i, v := range t.F64[col] {
				binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
			}
			if err := writeCol(dir, col, buf); err != nil {
				return err
			}
		}
		for _, col := range sortedKeys(t.F32) {
			desc.Columns[col] = colDesc{Kind: kindF32, Shape: t.Shapes[col]}
			buf := make([]byte, 4*len(t.F32[col]))
			for i, v := range t.F32[col] {
				binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
			}
			if err := writeCol(dir, col, buf); err != nil {
				return err
			}
		}
		for _, col := range sortedKeys(t.I32) {
			desc.Columns[col] = colDesc{Kind: kindI32, Shape: t.Shapes[col]}
			buf := make([]byte, 4*len(t.I32[col]))
			for i, v := range t.I32[col] {
				binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
			}
			if err := writeCol(dir, col, buf); err != nil {
				return err
			}
		}
		for _, col := range sortedKeys(t.C64) {
			desc.Columns[col] = colDesc{Kind: kindC64, Shape: t.Shapes[col]}
			buf := make([]byte, 8*len(t.C64[col]))
			for i, v := range t.C64[col] {
				binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(real(v)))
				binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(imag(v)))
			}
			if err := writeCol(dir, col, buf); err != nil {
				return err
			}
		}
		for _, col := range sortedKeys(t.B) {
			desc.Columns[col] = colDesc{Kind: kindBool, Shape: t.Shapes[col]}
			buf := make([]byte, len(t.B[col]))
			for i, v := range t.B[col] {
				if v {
					buf[i] = 1
				}
			}
			if err := writeCol(dir, col, buf); err != nil {
				return err
			}
		}
		for col, v := range t.Str {
			desc.Strings[col] = v
		}

		raw, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "table.json"), raw, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeCol(dir, col string, buf []byte) error {
	if err := os.WriteFile(filepath.Join(dir, col+".col"), buf, 0o644); err != nil {
		return fmt.Errorf("write column %s: %w", col, err)
	}
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
