// core/mset/set.go
package mset

import (
	"context"
	"fmt"
	"os"
)

// Casacore correlation-type codes for the linear basis.
const (
	corrXX = 9
	corrXY = 10
	corrYX = 11
	corrYY = 12
)

// Set is an opened measurement set. Metadata tables are loaded once at Open
// and held read-only for the run; MAIN rows stream through ForEachRow.
type Set struct {
	store Store
	main  Table

	antennas []Antenna
	spws     []SpectralWindow
	pc       PhaseCenter
	obs      Observation

	// polMap maps output polarization slots (XX, YY, XY, YX order) to input
	// column indices.
	polMap  []int
	ddToSpw []int
}

// Open opens the measurement set exported at path.
func Open(path string) (*Set, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, err
	}
	return OpenStore(NewDirStore(path))
}

// OpenStore opens a measurement set through an arbitrary storage backend.
func OpenStore(store Store) (*Set, error) {
	s := &Set{store: store}
	var err error
	if s.main, err = store.Table("MAIN"); err != nil {
		return nil, err
	}
	if s.main.NumRows() == 0 {
		return nil, fmt.Errorf("%w: MAIN has no rows", ErrCorruptTable)
	}
	if err := s.loadAntennas(); err != nil {
		return nil, err
	}
	if err := s.loadSpectralWindows(); err != nil {
		return nil, err
	}
	if err := s.loadPhaseCenter(); err != nil {
		return nil, err
	}
	if err := s.loadPolarization(); err != nil {
		return nil, err
	}
	if err := s.loadDataDesc(); err != nil {
		return nil, err
	}
	if err := s.loadObservation(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases backend resources, if the backend holds any.
func (s *Set) Close() error {
	if c, ok := s.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Antennas returns the antenna table, ordered by id.
func (s *Set) Antennas() []Antenna { return s.antennas }

// SpectralWindows returns the spectral windows, ordered by id.
func (s *Set) SpectralWindows() []SpectralWindow { return s.spws }

// PhaseCenter returns the tracked reference direction.
func (s *Set) PhaseCenter() PhaseCenter { return s.pc }

// Observation returns run-wide metadata.
func (s *Set) Observation() Observation { return s.obs }

// NumRows returns the MAIN row count.
func (s *Set) NumRows() int { return s.main.NumRows() }

// NumPols returns the number of output polarizations.
func (s *Set) NumPols() int { return len(s.polMap) }

// PolMap maps output polarization slots (XX, YY, XY, YX order) to input
// column indices.
func (s *Set) PolMap() []int { return s.polMap }

func (s *Set) loadAntennas() error {
	t, err := s.store.Table("ANTENNA")
	if err != nil {
		return err
	}
	pos, err := t.Floats("POSITION")
	if err != nil {
		return err
	}
	if len(pos) != 3*t.NumRows() {
		return fmt.Errorf("%w: ANTENNA POSITION has %d values for %d rows", ErrCorruptTable, len(pos), t.NumRows())
	}
	names, err := t.Strings("NAME")
	if err != nil {
		return err
	}
	if len(names) != t.NumRows() {
		return fmt.Errorf("%w: ANTENNA NAME has %d values for %d rows", ErrCorruptTable, len(names), t.NumRows())
	}
	var mounts []string
	if t.Has("MOUNT") {
		if mounts, err = t.Strings("MOUNT"); err != nil {
			return err
		}
	}
	s.antennas = make([]Antenna, t.NumRows())
	for i := range s.antennas {
		a := Antenna{Id: i, Name: names[i]}
		copy(a.Position[:], pos[i*3:i*3+3])
		if i < len(mounts) {
			a.Mount = mounts[i]
		}
		s.antennas[i] = a
	}
	return nil
}

func (s *Set) loadSpectralWindows() error {
	t, err := s.store.Table("SPECTRAL_WINDOW")
	if err != nil {
		return err
	}
	shape := t.Shape("CHAN_FREQ")
	if shape == nil || cellLen(shape) < 1 {
		return fmt.Errorf("%w: SPECTRAL_WINDOW has no CHAN_FREQ column", ErrCorruptTable)
	}
	nchan := cellLen(shape)
	freqs, err := t.Floats("CHAN_FREQ")
	if err != nil {
		return err
	}
	widths, err := t.Floats("CHAN_WIDTH")
	if err != nil {
		return err
	}
	refs, err := t.Floats("REF_FREQUENCY")
	if err != nil {
		return err
	}
	n := t.NumRows()
	if len(freqs) != n*nchan || len(widths) < n || len(refs) != n {
		return fmt.Errorf("%w: SPECTRAL_WINDOW column lengths inconsistent", ErrCorruptTable)
	}
	widthStride := len(widths) / n
	s.spws = make([]SpectralWindow, n)
	for i := 0; i < n; i++ {
		s.spws[i] = SpectralWindow{
			Id:        i,
			ChanFreqs: freqs[i*nchan : (i+1)*nchan],
			ChanWidth: widths[i*widthStride],
			RefFreq:   refs[i],
		}
	}
	return nil
}

func (s *Set) loadPhaseCenter() error {
	t, err := s.store.Table("FIELD")
	if err != nil {
		return err
	}
	if t.NumRows() < 1 {
		return fmt.Errorf("%w: FIELD has no rows", ErrCorruptTable)
	}
	dir, err := t.CellFloats("PHASE_DIR", 0)
	if err != nil {
		return err
	}
	if len(dir) < 2 {
		return fmt.Errorf("%w: FIELD PHASE_DIR cell has %d values", ErrCorruptTable, len(dir))
	}
	s.pc = PhaseCenter{RA: dir[0], Dec: dir[1]}
	return nil
}

func (s *Set) loadPolarization() error {
	t, err := s.store.Table("POLARIZATION")
	if err != nil {
		return err
	}
	corr, err := t.Ints("CORR_TYPE")
	if err != nil {
		return err
	}
	switch {
	case len(corr) == 1 && corr[0] == corrXX:
		s.polMap = []int{0}
	case len(corr) == 2 && corr[0] == corrXX && corr[1] == corrYY:
		s.polMap = []int{0, 1}
	case len(corr) == 4 && corr[0] == corrXX && corr[1] == corrXY &&
		corr[2] == corrYX && corr[3] == corrYY:
		// Output convention wants XX, YY, XY, YX.
		s.polMap = []int{0, 3, 1, 2}
	default:
		return fmt.Errorf("%w: polarization basis %v", ErrUnsupportedLayout, corr)
	}
	return nil
}

func (s *Set) loadDataDesc() error {
	// DATA_DESCRIPTION maps MAIN's DATA_DESC_ID to a spectral window. When the
	// table is absent, data-description ids are spectral-window ids.
	t, err := s.store.Table("DATA_DESCRIPTION")
	if err != nil {
		s.ddToSpw = nil
		return nil
	}
	ids, err := t.Ints("SPECTRAL_WINDOW_ID")
	if err != nil {
		return err
	}
	s.ddToSpw = make([]int, len(ids))
	for i, id := range ids {
		if int(id) < 0 || int(id) >= len(s.spws) {
			return fmt.Errorf("%w: DATA_DESCRIPTION row %d references spectral window %d", ErrCorruptTable, i, id)
		}
		s.ddToSpw[i] = int(id)
	}
	return nil
}

func (s *Set) loadObservation() error {
	times, err := s.main.Floats("TIME")
	if err != nil {
		return err
	}
	s.obs.StartTime = times[0]
	if s.main.Has("EXPOSURE") {
		exp, err := s.main.Floats("EXPOSURE")
		if err != nil {
			return err
		}
		if len(exp) > 0 {
			s.obs.IntegrationTime = exp[0]
		}
	}

	// Array reference position: OBSERVATION table when present, otherwise the
	// mean antenna position.
	if t, err := s.store.Table("OBSERVATION"); err == nil && t.Has("ARRAY_POSITION") {
		pos, err := t.CellFloats("ARRAY_POSITION", 0)
		if err != nil {
			return err
		}
		if len(pos) == 3 {
			copy(s.obs.ArrayPosition[:], pos)
			return nil
		}
	}
	var mean [3]float64
	for _, a := range s.antennas {
		for k := 0; k < 3; k++ {
			mean[k] += a.Position[k]
		}
	}
	if n := float64(len(s.antennas)); n > 0 {
		for k := 0; k < 3; k++ {
			mean[k] /= n
		}
	}
	s.obs.ArrayPosition = mean
	return nil
}

// ForEachRow streams MAIN rows in table order through emit, reading the
// visibilities from visCol. The stream is forward-only; calling ForEachRow
// again restarts it. Cancellation via ctx is honored between rows.
func (s *Set) ForEachRow(ctx context.Context, visCol string, emit func(Row) error) error {
	n := s.main.NumRows()
	times, err := s.main.Floats("TIME")
	if err != nil {
		return err
	}
	ant1, err := s.main.Ints("ANTENNA1")
	if err != nil {
		return err
	}
	ant2, err := s.main.Ints("ANTENNA2")
	if err != nil {
		return err
	}
	var dd []int32
	if s.main.Has("DATA_DESC_ID") {
		if dd, err = s.main.Ints("DATA_DESC_ID"); err != nil {
			return err
		}
	}
	if len(times) != n || len(ant1) != n || len(ant2) != n {
		return fmt.Errorf("%w: MAIN scalar columns shorter than row count", ErrCorruptTable)
	}
	if !s.main.Has(visCol) {
		return fmt.Errorf("%w: MAIN has no visibility column %s", ErrCorruptTable, visCol)
	}
	hasWeights := s.main.Has("WEIGHT_SPECTRUM")

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row := Row{
			Index:    i,
			Time:     times[i],
			Antenna1: int(ant1[i]),
			Antenna2: int(ant2[i]),
		}
		if row.Antenna1 < 0 || row.Antenna1 >= len(s.antennas) ||
			row.Antenna2 < 0 || row.Antenna2 >= len(s.antennas) {
			return fmt.Errorf("%w: MAIN row %d references antennas %d,%d", ErrCorruptTable, i, row.Antenna1, row.Antenna2)
		}
		if dd != nil {
			id := int(dd[i])
			if s.ddToSpw != nil {
				if id < 0 || id >= len(s.ddToSpw) {
					return fmt.Errorf("%w: MAIN row %d data-description id %d", ErrCorruptTable, i, id)
				}
				id = s.ddToSpw[id]
			}
			if id < 0 || id >= len(s.spws) {
				return fmt.Errorf("%w: MAIN row %d references spectral window %d", ErrCorruptTable, i, id)
			}
			row.SpwId = id
		}

		if row.Vis, err = s.main.CellComplex(visCol, i); err != nil {
			return err
		}
		if row.Flags, err = s.main.CellBools("FLAG", i); err != nil {
			return err
		}
		want := s.spws[row.SpwId].NumChans() * len(s.polMap)
		if len(row.Vis) != want || len(row.Flags) != want {
			return fmt.Errorf("%w: MAIN row %d has %d visibilities and %d flags, want %d",
				ErrCorruptTable, i, len(row.Vis), len(row.Flags), want)
		}
		if hasWeights {
			if row.Weights, err = s.main.CellFloat32s("WEIGHT_SPECTRUM", i); err != nil {
				return err
			}
			if len(row.Weights) != want {
				return fmt.Errorf("%w: MAIN row %d has %d weights, want %d", ErrCorruptTable, i, len(row.Weights), want)
			}
		} else {
			row.Weights = make([]float32, want)
			for k := range row.Weights {
				row.Weights[k] = 1
			}
		}

		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}
