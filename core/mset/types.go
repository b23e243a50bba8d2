// core/mset/types.go
package mset

// Antenna is one station of the array. Positions are absolute geocentric
// (ITRF) coordinates in metres.
type Antenna struct {
	Id       int
	Name     string
	Position [3]float64
	Mount    string
}

// SpectralWindow is one contiguous set of frequency channels; each window
// becomes one output file.
type SpectralWindow struct {
	Id        int
	ChanFreqs []float64 // Hz, ascending
	ChanWidth float64   // Hz
	RefFreq   float64   // Hz
}

// NumChans returns the channel count of the window.
func (s SpectralWindow) NumChans() int { return len(s.ChanFreqs) }

// PhaseCenter is the tracked reference direction, J2000 radians.
type PhaseCenter struct {
	RA  float64
	Dec float64
}

// Observation carries run-wide metadata derived from the set.
type Observation struct {
	ArrayPosition   [3]float64 // geocentric metres
	StartTime       float64    // casacore UTC seconds (MJD epoch)
	IntegrationTime float64    // seconds
}

// Row is one MAIN-table visibility row. Vis is chan-major, pol-minor, and
// Flags/Weights have the same length as Vis.
type Row struct {
	Index    int
	Time     float64 // casacore UTC seconds
	Antenna1 int
	Antenna2 int
	SpwId    int
	Vis      []complex64
	Flags    []bool
	Weights  []float32
}
