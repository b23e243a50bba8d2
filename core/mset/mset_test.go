// core/mset/mset_test.go
package mset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

const (
	synthNChan = 2
	synthNPol  = 2
	synthNRows = 3
)

// synthTables builds a minimal two-antenna set: one baseline, one spectral
// window, three integrations.
func synthTables() map[string]*MemTable {
	main := NewMemTable(synthNRows)
	cell := synthNChan * synthNPol
	for i := 0; i < synthNRows; i++ {
		main.F64["TIME"] = append(main.F64["TIME"], 4888561712.0+float64(i)*2)
		main.I32["ANTENNA1"] = append(main.I32["ANTENNA1"], 0)
		main.I32["ANTENNA2"] = append(main.I32["ANTENNA2"], 1)
		main.I32["DATA_DESC_ID"] = append(main.I32["DATA_DESC_ID"], 0)
		main.F64["EXPOSURE"] = append(main.F64["EXPOSURE"], 2.0)
		main.F64["UVW"] = append(main.F64["UVW"], float64(i), float64(-i), 0.5)
		for k := 0; k < cell; k++ {
			main.C64["DATA"] = append(main.C64["DATA"], complex(float32(i*10+k), float32(-k)))
			main.B["FLAG"] = append(main.B["FLAG"], k == 3)
			main.F32["WEIGHT_SPECTRUM"] = append(main.F32["WEIGHT_SPECTRUM"], float32(k)+0.5)
		}
	}
	main.Shapes["TIME"] = []int{}
	main.Shapes["ANTENNA1"] = []int{}
	main.Shapes["ANTENNA2"] = []int{}
	main.Shapes["DATA_DESC_ID"] = []int{}
	main.Shapes["EXPOSURE"] = []int{}
	main.Shapes["UVW"] = []int{3}
	main.Shapes["DATA"] = []int{synthNChan, synthNPol}
	main.Shapes["FLAG"] = []int{synthNChan, synthNPol}
	main.Shapes["WEIGHT_SPECTRUM"] = []int{synthNChan, synthNPol}

	ant := NewMemTable(2)
	ant.F64["POSITION"] = []float64{
		-2559454.08, 5095372.14, -2849057.18,
		-2559471.94, 5095394.08, -2849030.25,
	}
	ant.Shapes["POSITION"] = []int{3}
	ant.Str["NAME"] = []string{"Tile011", "Tile012"}
	ant.Str["MOUNT"] = []string{"ALT-AZ", "ALT-AZ"}

	spw := NewMemTable(1)
	spw.F64["CHAN_FREQ"] = []float64{167.035e6, 167.075e6}
	spw.Shapes["CHAN_FREQ"] = []int{synthNChan}
	spw.F64["CHAN_WIDTH"] = []float64{40e3, 40e3}
	spw.Shapes["CHAN_WIDTH"] = []int{synthNChan}
	spw.F64["REF_FREQUENCY"] = []float64{167.035e6}
	spw.Shapes["REF_FREQUENCY"] = []int{}

	field := NewMemTable(1)
	field.F64["PHASE_DIR"] = []float64{0.1, -0.47}
	field.Shapes["PHASE_DIR"] = []int{1, 2}

	pol := NewMemTable(1)
	pol.I32["CORR_TYPE"] = []int32{9, 12}
	pol.Shapes["CORR_TYPE"] = []int{synthNPol}

	dd := NewMemTable(1)
	dd.I32["SPECTRAL_WINDOW_ID"] = []int32{0}
	dd.Shapes["SPECTRAL_WINDOW_ID"] = []int{}

	obs := NewMemTable(1)
	obs.F64["ARRAY_POSITION"] = []float64{-2559463.0, 5095383.1, -2849043.7}
	obs.Shapes["ARRAY_POSITION"] = []int{3}

	return map[string]*MemTable{
		"MAIN":             main,
		"ANTENNA":          ant,
		"SPECTRAL_WINDOW":  spw,
		"FIELD":            field,
		"POLARIZATION":     pol,
		"DATA_DESCRIPTION": dd,
		"OBSERVATION":      obs,
	}
}

func synthStore(tables map[string]*MemTable) *MemStore {
	st := NewMemStore()
	for name, t := range tables {
		st.Add(name, t)
	}
	return st
}

func TestOpenStoreMetadata(t *testing.T) {
	s, err := OpenStore(synthStore(synthTables()))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	ants := s.Antennas()
	if len(ants) != 2 || ants[0].Name != "Tile011" || ants[1].Name != "Tile012" {
		t.Fatalf("antennas = %+v", ants)
	}
	if ants[1].Position[0] != -2559471.94 {
		t.Fatalf("antenna 1 position = %v", ants[1].Position)
	}
	spws := s.SpectralWindows()
	if len(spws) != 1 || spws[0].NumChans() != synthNChan || spws[0].ChanWidth != 40e3 {
		t.Fatalf("spectral windows = %+v", spws)
	}
	if pc := s.PhaseCenter(); pc.RA != 0.1 || pc.Dec != -0.47 {
		t.Fatalf("phase center = %+v", pc)
	}
	obs := s.Observation()
	if obs.StartTime != 4888561712.0 || obs.IntegrationTime != 2.0 {
		t.Fatalf("observation = %+v", obs)
	}
	if obs.ArrayPosition != ([3]float64{-2559463.0, 5095383.1, -2849043.7}) {
		t.Fatalf("array position = %v", obs.ArrayPosition)
	}
	if s.NumRows() != synthNRows || s.NumPols() != synthNPol {
		t.Fatalf("NumRows=%d NumPols=%d", s.NumRows(), s.NumPols())
	}
}

func TestArrayPositionFallsBackToMeanAntenna(t *testing.T) {
	tables := synthTables()
	delete(tables, "OBSERVATION")
	s, err := OpenStore(synthStore(tables))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	want := [3]float64{
		(-2559454.08 + -2559471.94) / 2,
		(5095372.14 + 5095394.08) / 2,
		(-2849057.18 + -2849030.25) / 2,
	}
	if got := s.Observation().ArrayPosition; got != want {
		t.Fatalf("array position = %v, want %v", got, want)
	}
}

func TestPolarizationMapping(t *testing.T) {
	cases := []struct {
		name    string
		corr    []int32
		want    []int
		wantErr error
	}{
		{"single xx", []int32{9}, []int{0}, nil},
		{"dual linear", []int32{9, 12}, []int{0, 1}, nil},
		{"full linear", []int32{9, 10, 11, 12}, []int{0, 3, 1, 2}, nil},
		{"circular", []int32{5, 6, 7, 8}, nil, ErrUnsupportedLayout},
		{"swapped", []int32{12, 9}, nil, ErrUnsupportedLayout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tables := synthTables()
			pol := NewMemTable(1)
			pol.I32["CORR_TYPE"] = tc.corr
			pol.Shapes["CORR_TYPE"] = []int{len(tc.corr)}
			tables["POLARIZATION"] = pol
			// Keep MAIN cell widths consistent with the basis.
			resizeMainPols(tables["MAIN"], len(tc.corr))

			s, err := OpenStore(synthStore(tables))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("OpenStore: %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStore: %v", err)
			}
			defer s.Close()
			got := s.PolMap()
			if len(got) != len(tc.want) {
				t.Fatalf("polMap = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("polMap = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

// resizeMainPols rebuilds MAIN's bulk cells for a different polarization count.
func resizeMainPols(main *MemTable, npol int) {
	cell := synthNChan * npol
	main.C64["DATA"] = make([]complex64, main.NRows*cell)
	main.B["FLAG"] = make([]bool, main.NRows*cell)
	main.F32["WEIGHT_SPECTRUM"] = make([]float32, main.NRows*cell)
	main.Shapes["DATA"] = []int{synthNChan, npol}
	main.Shapes["FLAG"] = []int{synthNChan, npol}
	main.Shapes["WEIGHT_SPECTRUM"] = []int{synthNChan, npol}
}

func TestOpenStoreMissingTable(t *testing.T) {
	tables := synthTables()
	delete(tables, "ANTENNA")
	_, err := OpenStore(synthStore(tables))
	if !errors.Is(err, ErrCorruptTable) {
		t.Fatalf("OpenStore without ANTENNA: %v, want ErrCorruptTable", err)
	}
}

func TestOpenMissingPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such-set"))
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("Open: %v, want ErrInputNotFound", err)
	}
}

func TestForEachRow(t *testing.T) {
	s, err := OpenStore(synthStore(synthTables()))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	var rows []Row
	err = s.ForEachRow(context.Background(), "DATA", func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRow: %v", err)
	}
	if len(rows) != synthNRows {
		t.Fatalf("emitted %d rows, want %d", len(rows), synthNRows)
	}
	for i, r := range rows {
		if r.Index != i || r.Antenna1 != 0 || r.Antenna2 != 1 || r.SpwId != 0 {
			t.Fatalf("row %d = %+v", i, r)
		}
		if r.Time != 4888561712.0+float64(i)*2 {
			t.Fatalf("row %d time = %v", i, r.Time)
		}
		cell := synthNChan * synthNPol
		if len(r.Vis) != cell || len(r.Flags) != cell || len(r.Weights) != cell {
			t.Fatalf("row %d cell lengths %d/%d/%d", i, len(r.Vis), len(r.Flags), len(r.Weights))
		}
		if r.Vis[1] != complex(float32(i*10+1), -1) {
			t.Fatalf("row %d vis[1] = %v", i, r.Vis[1])
		}
		if !r.Flags[3] || r.Flags[0] {
			t.Fatalf("row %d flags = %v", i, r.Flags)
		}
		if r.Weights[2] != 2.5 {
			t.Fatalf("row %d weights = %v", i, r.Weights)
		}
	}
}

func TestForEachRowDefaultWeights(t *testing.T) {
	tables := synthTables()
	delete(tables["MAIN"].F32, "WEIGHT_SPECTRUM")
	delete(tables["MAIN"].Shapes, "WEIGHT_SPECTRUM")
	s, err := OpenStore(synthStore(tables))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	err = s.ForEachRow(context.Background(), "DATA", func(r Row) error {
		for k, w := range r.Weights {
			if w != 1 {
				t.Fatalf("row %d weight %d = %v, want 1", r.Index, k, w)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRow: %v", err)
	}
}

func TestForEachRowMissingVisColumn(t *testing.T) {
	s, err := OpenStore(synthStore(synthTables()))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	err = s.ForEachRow(context.Background(), "CORRECTED_DATA", func(Row) error { return nil })
	if !errors.Is(err, ErrCorruptTable) {
		t.Fatalf("ForEachRow: %v, want ErrCorruptTable", err)
	}
}

func TestForEachRowCancellation(t *testing.T) {
	s, err := OpenStore(synthStore(synthTables()))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var emitted int
	err = s.ForEachRow(ctx, "DATA", func(Row) error {
		emitted++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ForEachRow: %v, want context.Canceled", err)
	}
	if emitted != 1 {
		t.Fatalf("emitted %d rows after cancel, want 1", emitted)
	}
}

func TestDirStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "synth.ms.d")
	tables := synthTables()
	if err := WriteDir(dir, tables); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ref, err := OpenStore(synthStore(tables))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer ref.Close()

	var want []Row
	if err := ref.ForEachRow(context.Background(), "DATA", func(r Row) error {
		r.Vis = append([]complex64(nil), r.Vis...)
		r.Flags = append([]bool(nil), r.Flags...)
		r.Weights = append([]float32(nil), r.Weights...)
		want = append(want, r)
		return nil
	}); err != nil {
		t.Fatalf("reference ForEachRow: %v", err)
	}

	i := 0
	err = s.ForEachRow(context.Background(), "DATA", func(r Row) error {
		w := want[i]
		if r.Time != w.Time || r.Antenna1 != w.Antenna1 || r.Antenna2 != w.Antenna2 || r.SpwId != w.SpwId {
			t.Fatalf("row %d = %+v, want %+v", i, r, w)
		}
		for k := range w.Vis {
			if r.Vis[k] != w.Vis[k] || r.Flags[k] != w.Flags[k] || r.Weights[k] != w.Weights[k] {
				t.Fatalf("row %d sample %d differs from in-memory read", i, k)
			}
		}
		i++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRow: %v", err)
	}
	if i != synthNRows {
		t.Fatalf("directory read emitted %d rows, want %d", i, synthNRows)
	}
}
