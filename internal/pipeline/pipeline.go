// Package pipeline classifies a loaded permit export, optionally geocodes the
// records, and persists the resulting dataset.
package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/middle-housing/internal/classify"
	"github.com/sells-group/middle-housing/internal/fetcher"
	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/internal/store"
	"github.com/sells-group/middle-housing/pkg/geocode"
)

// GeocodeScope selects which records are geocoded.
type GeocodeScope string

const (
	GeocodeNone          GeocodeScope = "none"
	GeocodeAll           GeocodeScope = "all"
	GeocodeMiddleHousing GeocodeScope = "middle_housing"
)

// ParseGeocodeScope maps user input onto a scope. Unknown input selects
// GeocodeNone.
func ParseGeocodeScope(s string) GeocodeScope {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "all", "true", "yes":
		return GeocodeAll
	case "middle_housing", "middle", "middle_housing_only":
		return GeocodeMiddleHousing
	}
	return GeocodeNone
}

func (s GeocodeScope) includes(r model.Record) bool {
	switch s {
	case GeocodeAll:
		return true
	case GeocodeMiddleHousing:
		return r.IsMiddleHousing
	}
	return false
}

// ErrAddressNotFound is recorded on records whose address no provider matched.
var ErrAddressNotFound = eris.New("address not found")

// Options tunes a pipeline run.
type Options struct {
	Workers            int // classification workers; 0 = GOMAXPROCS
	Geocode            GeocodeScope
	GeocodeConcurrency int // parallel single-address lookups; default 4
	GeocodeBatchSize   int // > 0 uses the batch API in chunks of this size
	DefaultCity        string
	DefaultState       string
}

// Stage names reported to ProgressFunc.
const (
	StageClassify = "classify"
	StageGeocode  = "geocode"
)

// ProgressFunc receives stage progress. It may be called concurrently.
type ProgressFunc func(stage string, done, total int)

// Input is one parsed export to classify.
type Input struct {
	Name    string
	Header  []string
	Rows    []model.Row
	Columns *model.ColumnMap // nil resolves columns from Header
	Geocode GeocodeScope     // empty uses Options.Geocode
}

// Result is the outcome of a run.
type Result struct {
	Dataset *model.Dataset
	Summary model.Summary
}

// Pipeline orchestrates classification, geocoding, and persistence.
type Pipeline struct {
	classifier *classify.Classifier
	geocoder   geocode.Client
	store      store.Store
	opts       Options
	progress   ProgressFunc
}

// New creates a Pipeline. A nil classifier uses the default vocabulary.
func New(c *classify.Classifier, opts Options) *Pipeline {
	if c == nil {
		c = classify.Default()
	}
	if opts.Geocode == "" {
		opts.Geocode = GeocodeNone
	}
	if opts.GeocodeConcurrency <= 0 {
		opts.GeocodeConcurrency = 4
	}
	if opts.DefaultCity == "" {
		opts.DefaultCity = geocode.DefaultCity
	}
	if opts.DefaultState == "" {
		opts.DefaultState = geocode.DefaultState
	}
	return &Pipeline{classifier: c, opts: opts}
}

// SetGeocoder enables geocoding.
func (p *Pipeline) SetGeocoder(gc geocode.Client) {
	p.geocoder = gc
}

// SetStore enables persistence of each run's dataset.
func (p *Pipeline) SetStore(st store.Store) {
	p.store = st
}

// OnProgress registers a progress callback.
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run classifies every row of in. Geocoding failures are recorded per record
// and never fail the run; only cancellation and persistence errors do.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("dataset", in.Name), zap.Int("rows", len(in.Rows)))

	cols := fetcher.ResolveColumns(in.Header)
	if in.Columns != nil {
		cols = *in.Columns
	}

	classes, err := p.classifier.ClassifyAll(ctx, in.Rows, cols, p.opts.Workers)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classify")
	}
	records := make([]model.Record, len(in.Rows))
	for i, row := range in.Rows {
		desc, project, addr := cols.Extract(row)
		records[i] = model.Record{
			Index:          i,
			Description:    desc,
			ProjectName:    project,
			Address:        addr,
			Classification: classes[i],
		}
	}
	p.report(StageClassify, len(records), len(records))

	scope := p.opts.Geocode
	if in.Geocode != "" {
		scope = in.Geocode
	}
	if p.geocoder != nil && scope != GeocodeNone {
		if err := p.geocode(ctx, records, scope); err != nil {
			return nil, err
		}
	}

	ds := &model.Dataset{
		Name:    in.Name,
		Header:  in.Header,
		Columns: cols,
		Records: records,
	}
	if p.store != nil {
		if err := p.store.SaveDataset(ctx, ds); err != nil {
			return nil, eris.Wrap(err, "pipeline: save dataset")
		}
	}

	summary := model.Summarize(records)
	log.Info("pipeline: run complete",
		zap.String("id", ds.ID),
		zap.Int("middle_housing", summary.MiddleHousing),
		zap.Int("geocoded", summary.Geocoded),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Dataset: ds, Summary: summary}, nil
}

// geocode fills Location or GeocodeError on every in-scope record with an
// address.
func (p *Pipeline) geocode(ctx context.Context, records []model.Record, scope GeocodeScope) error {
	var targets []int
	for i, r := range records {
		if strings.TrimSpace(r.Address) != "" && scope.includes(r) {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	zap.L().Info("pipeline: geocoding", zap.Int("addresses", len(targets)), zap.String("scope", string(scope)))

	if p.opts.GeocodeBatchSize > 0 {
		return p.geocodeBatches(ctx, records, targets)
	}

	var done atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.GeocodeConcurrency)
	for _, i := range targets {
		g.Go(func() error {
			in := geocode.ParseAddress(records[i].Address, p.opts.DefaultCity, p.opts.DefaultState)
			res, err := p.geocoder.Geocode(gCtx, in)
			if err != nil && gCtx.Err() != nil {
				return eris.Wrap(gCtx.Err(), "pipeline: geocode cancelled")
			}
			apply(&records[i], res, err)
			p.report(StageGeocode, int(done.Add(1)), len(targets))
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) geocodeBatches(ctx context.Context, records []model.Record, targets []int) error {
	size := min(p.opts.GeocodeBatchSize, geocode.MaxCensusBatch)
	done := 0
	for start := 0; start < len(targets); start += size {
		chunk := targets[start:min(start+size, len(targets))]
		inputs := make([]geocode.AddressInput, len(chunk))
		for j, i := range chunk {
			inputs[j] = geocode.ParseAddress(records[i].Address, p.opts.DefaultCity, p.opts.DefaultState)
		}

		results, err := p.geocoder.BatchGeocode(ctx, inputs)
		if err != nil && ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "pipeline: geocode cancelled")
		}
		if err != nil {
			zap.L().Warn("pipeline: batch geocode failed", zap.Int("addresses", len(chunk)), zap.Error(err))
		}
		for j, i := range chunk {
			switch {
			case err != nil:
				apply(&records[i], nil, err)
			case j < len(results):
				apply(&records[i], &results[j], nil)
			default:
				apply(&records[i], nil, ErrAddressNotFound)
			}
		}
		done += len(chunk)
		p.report(StageGeocode, done, len(targets))
	}
	return nil
}

// apply records one geocode outcome on r.
func apply(r *model.Record, res *geocode.Result, err error) {
	switch {
	case err != nil:
		r.GeocodeError = err.Error()
	case res == nil || !res.Matched:
		r.GeocodeError = ErrAddressNotFound.Error()
	default:
		r.Location = &model.Location{
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			Source:    res.Source,
			Quality:   res.Quality,
		}
		r.GeocodeError = ""
	}
}

func (p *Pipeline) report(stage string, done, total int) {
	if p.progress != nil {
		p.progress(stage, done, total)
	}
}
