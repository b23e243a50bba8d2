// internal/integration/integration_test.go
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mstouv-core/mset"
	"mstouv-core/uvfits"
	"mstouv/internal/app"
	"mstouv/pkg/api"
)

const (
	synthNChan = 2
	synthNPol  = 2
	synthNTime = 3
	refFreq    = 167.035e6
)

// writeSet exports a synthetic measurement set: two antennas, one baseline,
// nspw windows, three integrations per window.
func writeSet(t *testing.T, dir string, nspw int) string {
	t.Helper()

	nrows := synthNTime * nspw
	main := mset.NewMemTable(nrows)
	cell := synthNChan * synthNPol
	row := 0
	for i := 0; i < synthNTime; i++ {
		for s := 0; s < nspw; s++ {
			main.F64["TIME"] = append(main.F64["TIME"], 4888561712.0+float64(i)*2)
			main.I32["ANTENNA1"] = append(main.I32["ANTENNA1"], 0)
			main.I32["ANTENNA2"] = append(main.I32["ANTENNA2"], 1)
			main.I32["DATA_DESC_ID"] = append(main.I32["DATA_DESC_ID"], int32(s))
			main.F64["EXPOSURE"] = append(main.F64["EXPOSURE"], 2.0)
			main.F64["UVW"] = append(main.F64["UVW"], 0, 0, 0)
			for k := 0; k < cell; k++ {
				main.C64["DATA"] = append(main.C64["DATA"], complex(float32(row*10+k), float32(-k)))
				main.B["FLAG"] = append(main.B["FLAG"], false)
				main.F32["WEIGHT_SPECTRUM"] = append(main.F32["WEIGHT_SPECTRUM"], 1)
			}
			row++
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

	ant := mset.NewMemTable(2)
	ant.F64["POSITION"] = []float64{
		-2559454.08, 5095372.14, -2849057.18,
		-2559471.94, 5095394.08, -2849030.25,
	}
	ant.Shapes["POSITION"] = []int{3}
	ant.Str["NAME"] = []string{"Tile011", "Tile012"}
	ant.Str["MOUNT"] = []string{"ALT-AZ", "ALT-AZ"}

	spw := mset.NewMemTable(nspw)
	for s := 0; s < nspw; s++ {
		base := refFreq + float64(s)*1.28e6
		for c := 0; c < synthNChan; c++ {
			spw.F64["CHAN_FREQ"] = append(spw.F64["CHAN_FREQ"], base+float64(c)*40e3)
			spw.F64["CHAN_WIDTH"] = append(spw.F64["CHAN_WIDTH"], 40e3)
		}
		spw.F64["REF_FREQUENCY"] = append(spw.F64["REF_FREQUENCY"], base)
	}
	spw.Shapes["CHAN_FREQ"] = []int{synthNChan}
	spw.Shapes["CHAN_WIDTH"] = []int{synthNChan}
	spw.Shapes["REF_FREQUENCY"] = []int{}

	field := mset.NewMemTable(1)
	field.F64["PHASE_DIR"] = []float64{0.1, -0.47}
	field.Shapes["PHASE_DIR"] = []int{1, 2}

	pol := mset.NewMemTable(1)
	pol.I32["CORR_TYPE"] = []int32{9, 12}
	pol.Shapes["CORR_TYPE"] = []int{synthNPol}

	dd := mset.NewMemTable(nspw)
	for s := 0; s < nspw; s++ {
		dd.I32["SPECTRAL_WINDOW_ID"] = append(dd.I32["SPECTRAL_WINDOW_ID"], int32(s))
	}
	dd.Shapes["SPECTRAL_WINDOW_ID"] = []int{}

	path := filepath.Join(dir, "synth.ms")
	tables := map[string]*mset.MemTable{
		"MAIN":             main,
		"ANTENNA":          ant,
		"SPECTRAL_WINDOW":  spw,
		"FIELD":            field,
		"POLARIZATION":     pol,
		"DATA_DESCRIPTION": dd,
	}
	if err := mset.WriteDir(path, tables); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	return path
}

func TestEndToEndSingleWindow(t *testing.T) {
	dir := t.TempDir()
	ms := writeSet(t, dir, 1)
	base := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	code := app.Run([]string{"-output", base, "-quiet", ms}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}

	want := base + "_band01.uvfits"
	if got := strings.TrimSpace(stdout.String()); got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}

	u, err := uvfits.Open(want)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer u.Close()
	if u.GCount != synthNTime {
		t.Fatalf("GCount = %d, want %d", u.GCount, synthNTime)
	}
	if u.NChan != synthNChan || u.NPol != synthNPol {
		t.Fatalf("axes %dx%d", u.NChan, u.NPol)
	}
	fq := u.Ext("AIPS FQ")
	if fq == nil {
		t.Fatal("missing AIPS FQ table")
	}
	if ref, _ := fq.Float("REF_FREQ"); math.Abs(ref-refFreq) > 1e-3 {
		t.Fatalf("REF_FREQ = %v, want %v", ref, refFreq)
	}
	an := u.Ext("AIPS AN")
	if an == nil {
		t.Fatal("missing AIPS AN table")
	}
	if nrows, _ := an.Int("NAXIS2"); nrows != 2 {
		t.Fatalf("AIPS AN rows = %d, want 2", nrows)
	}
}

func TestEndToEndMultiWindow(t *testing.T) {
	dir := t.TempDir()
	ms := writeSet(t, dir, 2)
	base := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	code := app.Run([]string{"-output", base, "-quiet", "-threads", "2", ms}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}

	lines := strings.Fields(stdout.String())
	if len(lines) != 2 {
		t.Fatalf("stdout listed %d files: %v", len(lines), lines)
	}
	for s, p := range lines {
		u, err := uvfits.Open(p)
		if err != nil {
			t.Fatalf("Open %s: %v", p, err)
		}
		want := refFreq + float64(s)*1.28e6
		if ref, _ := u.Ext("AIPS FQ").Float("REF_FREQ"); math.Abs(ref-want) > 1e-3 {
			t.Fatalf("%s REF_FREQ = %v, want %v", p, ref, want)
		}
		if u.GCount != synthNTime {
			t.Fatalf("%s GCount = %d, want %d", p, u.GCount, synthNTime)
		}
		u.Close()
	}
}

func TestMissingAntennaTableFailsBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	ms := writeSet(t, dir, 1)
	if err := os.RemoveAll(filepath.Join(ms, "ANTENNA")); err != nil {
		t.Fatalf("remove ANTENNA: %v", err)
	}
	base := filepath.Join(dir, "out")

	var stderr bytes.Buffer
	code := app.Run([]string{"-output", base, "-quiet", ms}, io.Discard, &stderr)
	if code != 3 {
		t.Fatalf("exit %d, want 3; stderr: %s", code, stderr.String())
	}
	matches, err := filepath.Glob(base + "*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("failed run created files: %v", matches)
	}
}

func TestMissingInputPath(t *testing.T) {
	var stderr bytes.Buffer
	code := app.Run([]string{filepath.Join(t.TempDir(), "absent.ms")}, io.Discard, &stderr)
	if code != 2 {
		t.Fatalf("exit %d, want 2; stderr: %s", code, stderr.String())
	}
}

func TestUsageErrorsExitTwo(t *testing.T) {
	if code := app.Run([]string{"-threads", "-1", "x.ms"}, io.Discard, io.Discard); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if code := app.Run([]string{"a.ms", "b.ms"}, io.Discard, io.Discard); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
}

func TestVersionFlag(t *testing.T) {
	var stdout bytes.Buffer
	if code := app.Run([]string{"-version"}, &stdout, io.Discard); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "mstouv version ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestJSONSummary(t *testing.T) {
	dir := t.TempDir()
	ms := writeSet(t, dir, 1)
	base := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	code := app.Run([]string{"-output", base, "-quiet", "-json", ms}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}

	var sum api.RunSummaryV1
	if err := json.Unmarshal(stdout.Bytes(), &sum); err != nil {
		t.Fatalf("summary not valid JSON: %v\n%s", err, stdout.String())
	}
	if sum.Input != ms || sum.VisColumn != "DATA" || sum.PhaseTrackingUndone {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Outputs) != 1 {
		t.Fatalf("summary outputs = %+v", sum.Outputs)
	}
	o := sum.Outputs[0]
	if o.Path != base+"_band01.uvfits" || o.Band != 1 || o.Groups != synthNTime {
		t.Fatalf("output = %+v", o)
	}
	if math.Abs(o.RefFreqHz-refFreq) > 1e-3 {
		t.Fatalf("ref freq = %v, want %v", o.RefFreqHz, refFreq)
	}
}

func TestConfigFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	ms := writeSet(t, dir, 1)
	cfgPath := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(cfgPath, []byte("telescope: MWA\nquiet: true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	base := filepath.Join(dir, "out")

	var stderr bytes.Buffer
	code := app.Run([]string{"-output", base, "-config", cfgPath, ms}, io.Discard, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}
	// quiet from config suppresses progress lines.
	if strings.Contains(stderr.String(), "processed") {
		t.Fatalf("progress printed despite quiet config: %s", stderr.String())
	}

	u, err := uvfits.Open(base + "_band01.uvfits")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer u.Close()
	if got, _ := u.Primary.Str("TELESCOP"); got != "MWA" {
		t.Fatalf("TELESCOP = %q, want MWA", got)
	}
}
