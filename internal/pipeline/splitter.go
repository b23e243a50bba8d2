// internal/pipeline/splitter.go
package pipeline

import (
	"fmt"
	"sort"

	"mstouv-core/mset"
	"mstouv-core/uvfits"
)

// Splitter routes groups to one output writer per spectral window. Writers
// are created lazily on the first routed row of their window, so a window
// with no rows produces no file.
type Splitter struct {
	base     string
	oneToOne bool

	spws     []mset.SpectralWindow
	npol     int
	antennas []mset.Antenna
	pc       mset.PhaseCenter
	obs      mset.Observation
	opts     uvfits.Options

	writers map[int]*uvfits.Writer
	outputs []Output
}

// Output describes one finalized file.
type Output struct {
	Path      string
	Band      int // 1-based
	Groups    int64
	RefFreqHz float64
}

// NewSplitter prepares routing for the windows of set. With oneToOne the
// single output drops the band suffix; it requires a single-window set.
func NewSplitter(base string, oneToOne bool, set *mset.Set, opts uvfits.Options) (*Splitter, error) {
	if oneToOne && len(set.SpectralWindows()) != 1 {
		return nil, fmt.Errorf("--one-to-one needs a single spectral window, set has %d", len(set.SpectralWindows()))
	}
	return &Splitter{
		base:     base,
		oneToOne: oneToOne,
		spws:     set.SpectralWindows(),
		npol:     set.NumPols(),
		antennas: set.Antennas(),
		pc:       set.PhaseCenter(),
		obs:      set.Observation(),
		opts:     opts,
		writers:  map[int]*uvfits.Writer{},
	}, nil
}

// FileName returns the output path for one window.
func (s *Splitter) FileName(spwId int) string {
	if s.oneToOne {
		return s.base + ".uvfits"
	}
	return fmt.Sprintf("%s_band%02d.uvfits", s.base, spwId+1)
}

// Route appends one group to the window's file, creating it on first use.
func (s *Splitter) Route(spwId int, g uvfits.Group) error {
	w, ok := s.writers[spwId]
	if !ok {
		if spwId < 0 || spwId >= len(s.spws) {
			return fmt.Errorf("group routed to unknown spectral window %d", spwId)
		}
		var err error
		w, err = uvfits.Create(s.FileName(spwId), s.spws[spwId], s.npol, s.antennas, s.pc, s.obs, s.opts)
		if err != nil {
			return err
		}
		s.writers[spwId] = w
	}
	return w.WriteGroup(g)
}

// Finalize closes every open writer in ascending window order. The finished
// files are available through Outputs afterwards. If one writer fails its
// file is removed and every writer still open is discarded, so no file is
// left with a header that disagrees with its rows.
func (s *Splitter) Finalize() error {
	ids := make([]int, 0, len(s.writers))
	for id := range s.writers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		w := s.writers[id]
		if err := w.Finalize(); err != nil {
			_ = s.Discard()
			return err
		}
		s.outputs = append(s.outputs, Output{
			Path:      w.Path(),
			Band:      id + 1,
			Groups:    w.Rows(),
			RefFreqHz: s.spws[id].RefFreq,
		})
	}
	s.writers = map[int]*uvfits.Writer{}
	return nil
}

// Discard abandons every open writer, removing the partial files.
func (s *Splitter) Discard() error {
	var first error
	for _, w := range s.writers {
		if err := w.Discard(); err != nil && first == nil {
			first = err
		}
	}
	s.writers = map[int]*uvfits.Writer{}
	return first
}

// Outputs lists the finalized files in window order.
func (s *Splitter) Outputs() []Output { return s.outputs }

// Paths lists the finalized file paths in window order.
func (s *Splitter) Paths() []string {
	paths := make([]string, len(s.outputs))
	for i, o := range s.outputs {
		paths[i] = o.Path
	}
	return paths
}
