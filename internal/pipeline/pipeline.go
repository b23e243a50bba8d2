// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"math"
	"runtime"
	"sync"

	"mstouv-core/astro"
	"mstouv-core/mset"
	"mstouv-core/phase"
	"mstouv-core/uvfits"
)

// Rows per batch when Config.BatchRows is zero.
const defaultBatchRows = 128

// Progress is invoked after every routed batch with the running row count.
type Progress func(done, total int)

// Config controls the conversion pipeline.
type Config struct {
	VisCol            string
	UndoPhaseTracking bool
	ResetWeights      bool
	Threads           int // worker goroutines (0 = all CPUs)
	BatchRows         int // rows per batch (0 = default)
	Progress          Progress
}

type routed struct {
	spw int
	g   uvfits.Group
}

type job struct {
	seq  int
	rows []mset.Row
}

type result struct {
	seq int
	out []routed
	err error
}

// Run streams the set through astrometry, optional phase reversal, and the
// splitter. Batches are transformed by Threads workers but routed strictly
// in input order, so per-band row order always equals MAIN row order. On
// success every writer is finalized; on any failure or cancellation partial
// files are discarded, never left with an inconsistent header.
func Run(ctx context.Context, set *mset.Set, split *Splitter, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	threads := cfg.Threads
	if threads < 1 {
		threads = runtime.NumCPU()
	}
	batchRows := cfg.BatchRows
	if batchRows < 1 {
		batchRows = defaultBatchRows
	}

	tr := newTransformer(set, cfg)
	jobs := make(chan job, threads)
	results := make(chan result, threads)

	// Workers
	var wg sync.WaitGroup
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobs:
					if !ok {
						return
					}
					out, err := tr.transform(j.rows)
					select {
					case results <- result{seq: j.seq, out: out, err: err}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	// Collector: reorder results by sequence number and route in order.
	var (
		cerr  error
		cwg   sync.WaitGroup
		total = set.NumRows()
	)
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		pending := map[int]result{}
		next, done := 0, 0
		for res := range results {
			if cerr != nil {
				continue
			}
			pending[res.seq] = res
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if r.err != nil {
					cerr = r.err
					cancel()
					break
				}
				for _, o := range r.out {
					if err := split.Route(o.spw, o.g); err != nil {
						cerr = err
						cancel()
						break
					}
				}
				if cerr != nil {
					break
				}
				done += len(r.out)
				if cfg.Progress != nil {
					cfg.Progress(done, total)
				}
			}
		}
	}()

	// Feed batches in MAIN order.
	var (
		buf []mset.Row
		seq int
	)
	send := func() error {
		if len(buf) == 0 {
			return nil
		}
		select {
		case jobs <- job{seq: seq, rows: buf}:
			seq++
			buf = nil
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	feedErr := set.ForEachRow(ctx, cfg.VisCol, func(r mset.Row) error {
		buf = append(buf, r)
		if len(buf) == batchRows {
			return send()
		}
		return nil
	})
	if feedErr == nil {
		feedErr = send()
	}

	close(jobs)
	wg.Wait()
	close(results)
	cwg.Wait()

	err := cerr
	if err == nil {
		err = feedErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = split.Discard()
		return err
	}
	return split.Finalize()
}

// transformer turns MAIN rows into routed groups. It is safe for concurrent
// use; all referenced metadata is read-only after Open.
type transformer struct {
	cfg      Config
	spws     []mset.SpectralWindow
	antennas []mset.Antenna
	pc       mset.PhaseCenter
	polMap   []int
	lon      float64
}

func newTransformer(set *mset.Set, cfg Config) *transformer {
	_, lon, _ := astro.XYZToGeodetic(set.Observation().ArrayPosition)
	return &transformer{
		cfg:      cfg,
		spws:     set.SpectralWindows(),
		antennas: set.Antennas(),
		pc:       set.PhaseCenter(),
		polMap:   set.PolMap(),
		lon:      lon,
	}
}

func (t *transformer) transform(rows []mset.Row) ([]routed, error) {
	out := make([]routed, 0, len(rows))
	// Rows of one integration share a timestamp; cache its sidereal angle.
	lastTime := math.NaN()
	var lastLST float64

	for _, r := range rows {
		jd := astro.JDUTC(r.Time)
		if r.Time != lastTime {
			lastLST = astro.LocalApparentSidereal(jd, t.lon)
			lastTime = r.Time
		}

		uvw, err := astro.BaselineUVW(
			t.antennas[r.Antenna1].Position, t.antennas[r.Antenna2].Position,
			lastLST, t.pc.RA, t.pc.Dec)
		if err != nil {
			return nil, err
		}

		spw := t.spws[r.SpwId]
		npol := len(t.polMap)
		vis := r.Vis
		if t.cfg.UndoPhaseTracking {
			vis = append([]complex64(nil), vis...)
			phase.Reverse(vis, astro.GeometricDelay(uvw[0], uvw[1], uvw[2]), 0, spw.ChanFreqs, npol)
		}

		data := make([]float32, spw.NumChans()*npol*3)
		for c := 0; c < spw.NumChans(); c++ {
			for p := 0; p < npol; p++ {
				in := c*npol + t.polMap[p]
				o := (c*npol + p) * 3
				v := vis[in]
				w := r.Weights[in]
				if t.cfg.ResetWeights {
					w = 1
				}
				// Flags fold into the weight sign; rows are never dropped.
				if r.Flags[in] {
					w = -float32(math.Abs(float64(w)))
				}
				data[o] = real(v)
				data[o+1] = imag(v)
				data[o+2] = w
			}
		}

		out = append(out, routed{
			spw: r.SpwId,
			g: uvfits.Group{
				UU:       float32(uvw[0] / astro.SpeedOfLight),
				VV:       float32(uvw[1] / astro.SpeedOfLight),
				WW:       float32(uvw[2] / astro.SpeedOfLight),
				Baseline: float32(uvfits.EncodeBaseline(r.Antenna1+1, r.Antenna2+1)),
				JD:       jd,
				Data:     data,
			},
		})
	}
	return out, nil
}
