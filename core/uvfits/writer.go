// core/uvfits/writer.go
package uvfits

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"mstouv-core/astro"
	"mstouv-core/mset"
)

// ErrInvalidState reports use of a Writer after Finalize or Discard.
var ErrInvalidState = errors.New("invalid writer state")

// Floats per visibility sample: real, imaginary, weight.
const floatsPerVis = 3

// Options carry the identification keywords of an output file.
type Options struct {
	Object     string
	Telescope  string
	Instrument string
	Software   string
}

// Group is one random-groups record before serialization. UU, VV and WW are
// in seconds (the projected baseline divided by the speed of light), JD is
// the full Julian date of the sample, and Data holds nchan×npol (re, im,
// weight) float32 triplets in XX, YY, XY, YX polarization order.
type Group struct {
	UU, VV, WW float32
	Baseline   float32
	JD         float64
	Data       []float32
}

const (
	stateWriting = iota
	stateFinalized
)

// Writer serializes one sub-band's random-groups file. The group count is
// not known until the last row, so the header is written with a placeholder
// GCOUNT that Finalize patches in place; a finalized header always matches
// the number of groups actually written.
type Writer struct {
	path  string
	f     *os.File
	bw    *bufio.Writer
	state int

	spw      mset.SpectralWindow
	npol     int
	antennas []mset.Antenna
	pc       mset.PhaseCenter
	obs      mset.Observation
	opts     Options

	startJD   float64
	pzero5    float64
	gcount    int64
	gcountOff int64
	dataBytes int64
	recBuf    []byte
}

// Create opens path for writing and lays down the primary header for the
// given spectral window. Any existing file at path is truncated.
func Create(path string, spw mset.SpectralWindow, npol int, antennas []mset.Antenna,
	pc mset.PhaseCenter, obs mset.Observation, opts Options) (*Writer, error) {
	if spw.NumChans() == 0 {
		return nil, fmt.Errorf("spectral window %d has no channels", spw.Id)
	}
	if npol < 1 {
		return nil, fmt.Errorf("need at least one polarization, got %d", npol)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		path:     path,
		f:        f,
		bw:       bufio.NewWriterSize(f, 1<<16),
		spw:      spw,
		npol:     npol,
		antennas: antennas,
		pc:       pc,
		obs:      obs,
		opts:     opts,
		recBuf:   make([]byte, 4*(5+spw.NumChans()*npol*floatsPerVis)),
	}
	w.startJD = astro.JDUTC(obs.StartTime)
	w.pzero5 = math.Floor(w.startJD) + 0.5

	h := w.primaryHeader()
	w.gcountOff = h.offsetOf("GCOUNT")
	hb := h.bytes()
	if _, err := w.bw.Write(hb); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// Rows returns the number of groups written so far.
func (w *Writer) Rows() int64 { return w.gcount }

func (w *Writer) primaryHeader() *header {
	h := &header{}
	h.logical("SIMPLE", true, "file conforms to FITS standard")
	h.intKey("BITPIX", -32, "IEEE single precision floating point")
	h.intKey("NAXIS", 6, "")
	h.intKey("NAXIS1", 0, "no standard image, random groups")
	h.intKey("NAXIS2", 3, "real, imaginary, weight")
	h.intKey("NAXIS3", int64(w.npol), "polarizations")
	h.intKey("NAXIS4", int64(w.spw.NumChans()), "frequency channels")
	h.intKey("NAXIS5", 1, "")
	h.intKey("NAXIS6", 1, "")
	h.logical("EXTEND", true, "")
	h.logical("GROUPS", true, "random group records follow")
	h.intKey("PCOUNT", 5, "group parameters")
	h.intKey("GCOUNT", 0, "number of groups, patched on finalize")
	h.floatKey("BSCALE", 1.0, "")

	ptypes := []string{"UU", "VV", "WW", "BASELINE", "DATE"}
	for i, p := range ptypes {
		h.strKey(fmt.Sprintf("PTYPE%d", i+1), p, "")
		h.floatKey(fmt.Sprintf("PSCAL%d", i+1), 1.0, "")
		if p == "DATE" {
			h.floatKey(fmt.Sprintf("PZERO%d", i+1), w.pzero5, "truncated Julian date")
		} else {
			h.floatKey(fmt.Sprintf("PZERO%d", i+1), 0.0, "")
		}
	}
	h.strKey("DATE-OBS", astro.TruncatedDate(w.startJD), "")

	h.strKey("CTYPE2", "COMPLEX", "")
	h.floatKey("CRVAL2", 1.0, "")
	h.floatKey("CRPIX2", 1.0, "")
	h.floatKey("CDELT2", 1.0, "")

	// Linear polarization basis.
	h.strKey("CTYPE3", "STOKES", "")
	h.floatKey("CRVAL3", -5, "XX")
	h.floatKey("CDELT3", -1, "")
	h.floatKey("CRPIX3", 1.0, "")

	h.strKey("CTYPE4", "FREQ", "")
	h.floatKey("CRVAL4", w.spw.RefFreq, "reference frequency [Hz]")
	h.floatKey("CDELT4", w.spw.ChanWidth, "channel width [Hz]")
	h.floatKey("CRPIX4", float64(w.refChan()), "")

	h.strKey("CTYPE5", "RA", "")
	h.floatKey("CRVAL5", w.pc.RA*180/math.Pi, "")
	h.floatKey("CDELT5", 1, "")
	h.floatKey("CRPIX5", 1, "")

	h.strKey("CTYPE6", "DEC", "")
	h.floatKey("CRVAL6", w.pc.Dec*180/math.Pi, "")
	h.floatKey("CDELT6", 1, "")
	h.floatKey("CRPIX6", 1, "")

	h.floatKey("OBSRA", w.pc.RA*180/math.Pi, "")
	h.floatKey("OBSDEC", w.pc.Dec*180/math.Pi, "")
	h.floatKey("EPOCH", 2000.0, "")

	object := w.opts.Object
	if object == "" {
		object = "Undefined"
	}
	h.strKey("OBJECT", object, "")
	h.strKey("TELESCOP", w.opts.Telescope, "")
	h.strKey("INSTRUME", w.opts.Instrument, "")
	if w.opts.Software != "" {
		h.strKey("SOFTWARE", w.opts.Software, "")
		h.comment("Created by " + w.opts.Software)
	}
	h.history("AIPS WTSCAL =  1.0")
	return h
}

// refChan returns the 1-based channel index the reference frequency falls on.
func (w *Writer) refChan() int {
	if w.spw.ChanWidth == 0 {
		return 1
	}
	idx := int(math.Round((w.spw.RefFreq-w.spw.ChanFreqs[0])/w.spw.ChanWidth)) + 1
	if idx < 1 {
		idx = 1
	}
	if idx > w.spw.NumChans() {
		idx = w.spw.NumChans()
	}
	return idx
}

// WriteGroup appends one fixed-layout record: the five group parameters
// followed by the visibility triplets. Calling it after Finalize or Discard
// fails with ErrInvalidState.
func (w *Writer) WriteGroup(g Group) error {
	if w.state != stateWriting {
		return fmt.Errorf("%w: write after finalize on %s", ErrInvalidState, w.path)
	}
	want := w.spw.NumChans() * w.npol * floatsPerVis
	if len(g.Data) != want {
		return fmt.Errorf("group has %d values, want %d", len(g.Data), want)
	}

	buf := w.recBuf
	binary.BigEndian.PutUint32(buf[0:], math.Float32bits(g.UU))
	binary.BigEndian.PutUint32(buf[4:], math.Float32bits(g.VV))
	binary.BigEndian.PutUint32(buf[8:], math.Float32bits(g.WW))
	binary.BigEndian.PutUint32(buf[12:], math.Float32bits(g.Baseline))
	binary.BigEndian.PutUint32(buf[16:], math.Float32bits(float32(g.JD-w.pzero5)))
	for i, v := range g.Data {
		binary.BigEndian.PutUint32(buf[20+4*i:], math.Float32bits(v))
	}
	if _, err := w.bw.Write(buf); err != nil {
		return fmt.Errorf("write group %d: %w", w.gcount, err)
	}
	w.dataBytes += int64(len(buf))
	w.gcount++
	return nil
}

// Finalize pads the data region, appends the antenna and frequency tables,
// patches the true group count into the header, and closes the file. On
// failure the partial file is removed. The writer is unusable afterwards.
func (w *Writer) Finalize() error {
	if w.state != stateWriting {
		return fmt.Errorf("%w: finalize twice on %s", ErrInvalidState, w.path)
	}
	w.state = stateFinalized

	if pad := padBlock(w.dataBytes); pad != nil {
		if _, err := w.bw.Write(pad); err != nil {
			return w.failClose(err)
		}
	}
	if err := w.writeAntennaTable(); err != nil {
		return w.failClose(err)
	}
	if err := w.writeFrequencyTable(); err != nil {
		return w.failClose(err)
	}
	if err := w.bw.Flush(); err != nil {
		return w.failClose(err)
	}

	// Patch GCOUNT in place so the header matches the rows actually written.
	card := valueCard("GCOUNT", fmt.Sprintf("%20d", w.gcount), "number of groups")
	card = fmt.Sprintf("%-*s", CardLen, card)
	if _, err := w.f.WriteAt([]byte(card), w.gcountOff); err != nil {
		return w.failClose(err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.path)
		return fmt.Errorf("finalize %s: %w", w.path, err)
	}
	return nil
}

// failClose removes the file: a failed finalize leaves data without tables,
// or a header whose GCOUNT still reads zero, and no reader should see either.
func (w *Writer) failClose(err error) error {
	_ = w.f.Close()
	_ = os.Remove(w.path)
	return fmt.Errorf("finalize %s: %w", w.path, err)
}

// Discard abandons the file, removing the partial output so no header can
// claim rows that were never written. The writer is unusable afterwards.
func (w *Writer) Discard() error {
	if w.state != stateWriting {
		return nil
	}
	w.state = stateFinalized
	_ = w.f.Close()
	return os.Remove(w.path)
}
