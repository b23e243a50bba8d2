// core/uvfits/tables.go
package uvfits

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"mstouv-core/astro"
)

// Antenna-table row layout: ANNAME 8A, STABXYZ 3D, NOSTA 1J, MNTSTA 1J,
// STAXOF 1E, POLTYA 1A, POLAA 1E, POLCALA 3E, POLTYB 1A, POLAB 1E,
// POLCALB 3E.
const anRowLen = 8 + 24 + 4 + 4 + 4 + 1 + 4 + 12 + 1 + 4 + 12

// Frequency-table row layout: FRQSEL 1J, IF FREQ 1D, CH WIDTH 1E,
// TOTAL BANDWIDTH 1E, SIDEBAND 1J.
const fqRowLen = 4 + 8 + 4 + 4 + 4

func bintableHeader(rowLen, nrows, nfields int) *header {
	h := &header{}
	h.strKey("XTENSION", "BINTABLE", "binary table extension")
	h.intKey("BITPIX", 8, "")
	h.intKey("NAXIS", 2, "")
	h.intKey("NAXIS1", int64(rowLen), "bytes per row")
	h.intKey("NAXIS2", int64(nrows), "")
	h.intKey("PCOUNT", 0, "")
	h.intKey("GCOUNT", 1, "")
	h.intKey("TFIELDS", int64(nfields), "")
	return h
}

func (w *Writer) writeAntennaTable() error {
	names := []string{"ANNAME", "STABXYZ", "NOSTA", "MNTSTA", "STAXOF",
		"POLTYA", "POLAA", "POLCALA", "POLTYB", "POLAB", "POLCALB"}
	forms := []string{"8A", "3D", "1J", "1J", "1E", "1A", "1E", "3E", "1A", "1E", "3E"}
	units := []string{"", "METERS", "", "", "METERS", "", "DEGREES", "", "", "DEGREES", ""}

	h := bintableHeader(anRowLen, len(w.antennas), len(names))
	for i := range names {
		h.strKey(fmt.Sprintf("TTYPE%d", i+1), names[i], "")
		h.strKey(fmt.Sprintf("TFORM%d", i+1), forms[i], "")
		if units[i] != "" {
			h.strKey(fmt.Sprintf("TUNIT%d", i+1), units[i], "")
		}
	}
	h.strKey("EXTNAME", "AIPS AN", "")
	h.intKey("EXTVER", 1, "")

	h.floatKey("ARRAYX", w.obs.ArrayPosition[0], "")
	h.floatKey("ARRAYY", w.obs.ArrayPosition[1], "")
	h.floatKey("ARRAYZ", w.obs.ArrayPosition[2], "")
	h.floatKey("FREQ", w.spw.RefFreq, "")

	// GMST at the midnight opening the reference date.
	mjd := w.startJD - 2400000.5
	jdMidnight := math.Floor(mjd) + 2400000.5
	h.floatKey("GSTIA0", astro.GMSTDeg(jdMidnight), "")
	h.floatKey("DEGPDY", 3.60985e2, "Earth rotation rate")
	h.strKey("RDATE", astro.TruncatedDate(w.startJD), "")

	h.floatKey("POLARX", 0.0, "")
	h.floatKey("POLARY", 0.0, "")
	h.floatKey("UT1UTC", 0.0, "")
	h.floatKey("DATUTC", 0.0, "")
	h.strKey("TIMSYS", "UTC", "")
	h.strKey("ARRNAM", w.opts.Telescope, "")
	h.intKey("NUMORB", 0, "orbital parameters per row")
	h.intKey("NOPCAL", 3, "polarization calibration values")
	h.intKey("FREQID", -1, "")
	h.floatKey("IATUTC", 33.0, "")
	h.strKey("XYZHAND", "RIGHT", "station coordinate handedness")

	if _, err := w.bw.Write(h.bytes()); err != nil {
		return err
	}

	row := make([]byte, anRowLen)
	for i, a := range w.antennas {
		off := 0
		copy(row[off:off+8], padName(a.Name, 8))
		off += 8
		for k := 0; k < 3; k++ {
			local := a.Position[k] - w.obs.ArrayPosition[k]
			binary.BigEndian.PutUint64(row[off:], math.Float64bits(local))
			off += 8
		}
		binary.BigEndian.PutUint32(row[off:], uint32(int32(i+1))) // NOSTA
		off += 4
		binary.BigEndian.PutUint32(row[off:], uint32(mountCode(a.Mount)))
		off += 4
		binary.BigEndian.PutUint32(row[off:], math.Float32bits(0)) // STAXOF
		off += 4
		row[off] = 'X'
		off++
		binary.BigEndian.PutUint32(row[off:], math.Float32bits(0)) // POLAA
		off += 4
		for k := 0; k < 3; k++ {
			binary.BigEndian.PutUint32(row[off:], math.Float32bits(0))
			off += 4
		}
		row[off] = 'Y'
		off++
		binary.BigEndian.PutUint32(row[off:], math.Float32bits(90)) // POLAB
		off += 4
		for k := 0; k < 3; k++ {
			binary.BigEndian.PutUint32(row[off:], math.Float32bits(0))
			off += 4
		}
		if _, err := w.bw.Write(row); err != nil {
			return fmt.Errorf("antenna row %d: %w", i, err)
		}
	}
	if pad := padBlock(int64(len(w.antennas) * anRowLen)); pad != nil {
		if _, err := w.bw.Write(pad); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFrequencyTable() error {
	names := []string{"FRQSEL", "IF FREQ", "CH WIDTH", "TOTAL BANDWIDTH", "SIDEBAND"}
	forms := []string{"1J", "1D", "1E", "1E", "1J"}
	units := []string{"", "HZ", "HZ", "HZ", ""}

	h := bintableHeader(fqRowLen, 1, len(names))
	for i := range names {
		h.strKey(fmt.Sprintf("TTYPE%d", i+1), names[i], "")
		h.strKey(fmt.Sprintf("TFORM%d", i+1), forms[i], "")
		if units[i] != "" {
			h.strKey(fmt.Sprintf("TUNIT%d", i+1), units[i], "")
		}
	}
	h.strKey("EXTNAME", "AIPS FQ", "")
	h.intKey("EXTVER", 1, "")
	h.intKey("NO_IF", 1, "")
	h.floatKey("REF_FREQ", w.spw.RefFreq, "reference frequency of this band")

	if _, err := w.bw.Write(h.bytes()); err != nil {
		return err
	}

	row := make([]byte, fqRowLen)
	binary.BigEndian.PutUint32(row[0:], 1) // FRQSEL
	binary.BigEndian.PutUint64(row[4:], math.Float64bits(0))
	binary.BigEndian.PutUint32(row[12:], math.Float32bits(float32(w.spw.ChanWidth)))
	totBW := w.spw.ChanWidth * float64(w.spw.NumChans())
	binary.BigEndian.PutUint32(row[16:], math.Float32bits(float32(totBW)))
	binary.BigEndian.PutUint32(row[20:], 1) // SIDEBAND
	if _, err := w.bw.Write(row); err != nil {
		return err
	}
	if pad := padBlock(fqRowLen); pad != nil {
		if _, err := w.bw.Write(pad); err != nil {
			return err
		}
	}
	return nil
}

func padName(s string, n int) []byte {
	if len(s) > n {
		s = s[:n]
	}
	return []byte(s + strings.Repeat(" ", n-len(s)))
}

func mountCode(mount string) int32 {
	switch strings.ToUpper(strings.TrimSpace(mount)) {
	case "EQUATORIAL":
		return 1
	case "ORBITING":
		return 2
	case "X-Y":
		return 3
	default: // alt-az and fixed dipoles
		return 0
	}
}
