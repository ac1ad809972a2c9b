package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/middle-housing/internal/classify"
	"github.com/sells-group/middle-housing/internal/db"
	"github.com/sells-group/middle-housing/internal/fetcher"
	"github.com/sells-group/middle-housing/internal/pipeline"
	"github.com/sells-group/middle-housing/internal/resilience"
	"github.com/sells-group/middle-housing/internal/store"
	"github.com/sells-group/middle-housing/pkg/geocode"
)

// appEnv holds the collaborators the commands share.
type appEnv struct {
	Classifier *classify.Classifier
	Loader     *fetcher.Loader
	Store      store.Store // nil unless requested
	Geocoder   geocode.Client
	Pipeline   *pipeline.Pipeline
}

// envOptions selects the optional collaborators.
type envOptions struct {
	store bool
	scope pipeline.GeocodeScope
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the classifier, loader, and pipeline. The store is opened
// when requested or when geocoding needs its cache. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string, opts envOptions) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	c, err := initClassifier()
	if err != nil {
		return nil, err
	}
	env := &appEnv{Classifier: c, Loader: initLoader()}

	geocoding := opts.scope != "" && opts.scope != pipeline.GeocodeNone
	if opts.store || geocoding {
		env.Store, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	env.Pipeline = pipeline.New(c, pipeline.Options{
		Workers:            cfg.Batch.Workers,
		Geocode:            opts.scope,
		GeocodeConcurrency: cfg.Geocode.Concurrency,
		GeocodeBatchSize:   cfg.Geocode.BatchSize,
		DefaultCity:        cfg.Geocode.DefaultCity,
		DefaultState:       cfg.Geocode.DefaultState,
	})
	if opts.store {
		env.Pipeline.SetStore(env.Store)
	}
	if geocoding || mode == "serve" {
		env.Geocoder = initGeocoder(env.Store)
		env.Pipeline.SetGeocoder(env.Geocoder)
	}
	return env, nil
}

func initClassifier() (*classify.Classifier, error) {
	if cfg.Classifier.VocabularyFile == "" {
		return classify.Default(), nil
	}
	v, err := classify.LoadVocabulary(cfg.Classifier.VocabularyFile)
	if err != nil {
		return nil, err
	}
	c, err := classify.New(v)
	if err != nil {
		return nil, eris.Wrap(err, "build classifier")
	}
	zap.L().Info("using custom vocabulary", zap.String("file", cfg.Classifier.VocabularyFile))
	return c, nil
}

func initLoader() *fetcher.Loader {
	return fetcher.NewLoader(
		fetcher.HTTPOptions{
			UserAgent:  cfg.Ingest.UserAgent,
			Timeout:    time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Ingest.MaxRetries,
			RateLimit:  rate.Limit(cfg.Ingest.RateLimit),
		},
		fetcher.FTPOptions{Timeout: time.Duration(cfg.Ingest.FTPTimeoutSecs) * time.Second},
	)
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DatabaseURL,
		Pool:   db.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns},
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initGeocoder builds the provider chain, wrapped in the store-backed cache
// when a store is available.
func initGeocoder(st store.Store) geocode.Client {
	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithRetry(resilience.RetryFromConfig(cfg.Geocode.MaxAttempts, cfg.Geocode.InitialBackoffMs)),
		geocode.WithCircuitBreaker(resilience.CircuitFromConfig(cfg.Geocode.FailureThreshold, cfg.Geocode.ResetTimeoutSecs)),
	}
	if cfg.Geocode.GoogleAPIKey != "" {
		opts = append(opts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey))
		zap.L().Info("google geocoding fallback enabled")
	} else {
		zap.L().Debug("MIDHOUSING_GEOCODE_GOOGLE_API_KEY not set, census only")
	}

	gc := geocode.NewClient(opts...)
	if st == nil {
		return gc
	}
	ttl := time.Duration(cfg.Geocode.CacheTTLHours) * time.Hour
	return geocode.NewCachedClient(gc, st, ttl)
}
