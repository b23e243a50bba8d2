// pkg/api/summary_v1.go
package api

// RunSummaryV1 is the stable JSON schema for one conversion run.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type RunSummaryV1 struct {
	Input               string         `json:"input"`
	VisColumn           string         `json:"vis_column"`
	PhaseTrackingUndone bool           `json:"phase_tracking_undone"`
	Outputs             []OutputFileV1 `json:"outputs"`
}

// OutputFileV1 describes one written sub-band file.
type OutputFileV1 struct {
	Path      string  `json:"path"`
	Band      int     `json:"band"`
	Groups    int64   `json:"groups"`
	RefFreqHz float64 `json:"ref_freq_hz"`
}
