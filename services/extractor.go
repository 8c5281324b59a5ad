package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"golemio-extractor/config"
	"golemio-extractor/models"
	"golemio-extractor/scraper/golemio"
	"golemio-extractor/storage"
	"golemio-extractor/utils"
)

// ErrNoData is returned when no combination produced any record. Nothing is
// written in that case.
var ErrNoData = errors.New("no features fetched from API for any combination")

// FeatureFetcher fetches the raw features of one combination.
type FeatureFetcher interface {
	Fetch(ctx context.Context, req golemio.Request) ([]models.Feature, error)
}

// ExtractorOptions are the knobs of a run taken from the config.
type ExtractorOptions struct {
	FetchCap        int
	ContinueOnError bool
	Deduplicate     bool
	Location        *time.Location
}

// OptionsFromConfig derives ExtractorOptions from cfg.
func OptionsFromConfig(cfg *config.Config) (ExtractorOptions, error) {
	loc, err := cfg.Location()
	if err != nil {
		return ExtractorOptions{}, err
	}
	return ExtractorOptions{
		FetchCap:        cfg.FetchCap,
		ContinueOnError: cfg.ContinueOnError,
		Deduplicate:     cfg.Deduplicate,
		Location:        loc,
	}, nil
}

// Extractor runs fetch, transform, merge, rank, truncate and write for every
// combination of the configured axes.
type Extractor struct {
	opts        ExtractorOptions
	fetcher     FeatureFetcher
	transformer *Transformer
	writers     []storage.SnapshotWriter
	logger      *utils.Logger
	now         func() time.Time
}

// NewExtractor wires an Extractor.
func NewExtractor(opts ExtractorOptions, fetcher FeatureFetcher, writers []storage.SnapshotWriter, logger *utils.Logger) *Extractor {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Extractor{
		opts:        opts,
		fetcher:     fetcher,
		transformer: NewTransformer(logger),
		writers:     writers,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateCombinations returns the cartesian product of the axes, district
// groups first, in configuration order.
func GenerateCombinations(axes models.Axes) []models.Combination {
	var out []models.Combination
	for _, districts := range axes.Districts {
		for _, latlng := range axes.LatLngs {
			for _, rangeM := range axes.Ranges {
				for _, limit := range axes.Limits {
					for _, offset := range axes.Offsets {
						for _, since := range axes.UpdatedSince {
							out = append(out, models.Combination{
								Districts:    districts,
								LatLng:       latlng,
								RangeM:       rangeM,
								Limit:        limit,
								Offset:       offset,
								UpdatedSince: since,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Run performs one extraction. The returned Run is populated as far as the
// extraction got, also when an error is returned.
func (e *Extractor) Run(ctx context.Context, axes models.Axes) (*models.Run, error) {
	started := e.now().In(e.opts.Location)
	run := &models.Run{
		ID:           uuid.NewString(),
		StartedAt:    started,
		Date:         started.Format("2006-01-02"),
		Combinations: GenerateCombinations(axes),
	}
	e.logger.Info("[extractor] Starting extraction %s for %s (%d combinations)",
		run.ID, run.Date, len(run.Combinations))

	var failures []error
	for idx, combo := range run.Combinations {
		e.logger.Info("[extractor] Extracting for combo %d/%d: districts=%v, latlng=%s, range=%d, limit=%d, offset=%d, updated_since=%s",
			idx+1, len(run.Combinations), combo.Districts, combo.LatLng, combo.RangeM, combo.Limit, combo.Offset, combo.UpdatedSince)

		result := e.runCombination(ctx, combo)
		run.Results = append(run.Results, result)

		switch result.Status {
		case models.CombinationFailed:
			err := fmt.Errorf("combination %d/%d: %w", idx+1, len(run.Combinations), result.Err)
			if !e.opts.ContinueOnError || ctx.Err() != nil {
				return run, err
			}
			e.logger.Error("[extractor] %v; continuing with next combination", err)
			failures = append(failures, err)
		case models.CombinationEmpty:
			e.logger.Warn("[extractor] No features fetched for combo %d", idx+1)
		}
	}

	run.Merged = e.merge(run.Results)
	if len(run.Merged) == 0 {
		e.logger.Error("[extractor] %v", ErrNoData)
		return run, errors.Join(append([]error{ErrNoData}, failures...)...)
	}

	Rank(run.Merged, ReferencePoint(axes.LatLngs))
	globalLimit := -1
	if len(axes.Limits) > 0 {
		globalLimit = axes.Limits[0]
	}
	run.Final = Truncate(run.Merged, globalLimit)
	e.logger.Info("[extractor] Merged %d records, keeping %d", len(run.Merged), len(run.Final))

	if err := e.write(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

func (e *Extractor) runCombination(ctx context.Context, combo models.Combination) models.CombinationResult {
	result := models.CombinationResult{Combination: combo}

	features, err := e.fetcher.Fetch(ctx, golemio.RequestFor(combo, e.opts.FetchCap))
	if err != nil {
		result.Status = models.CombinationFailed
		result.Err = err
		return result
	}
	if len(features) == 0 {
		result.Status = models.CombinationEmpty
		return result
	}

	result.Status = models.CombinationOK
	result.Records = e.transformer.TransformAll(features)
	return result
}

// merge concatenates successful results in combination order, dropping
// repeated IDs when deduplication is on. Records without an ID are kept.
func (e *Extractor) merge(results []models.CombinationResult) []*models.Record {
	seen := utils.NewIDSet()
	var merged []*models.Record
	dropped := 0

	for _, res := range results {
		for _, r := range res.Records {
			if e.opts.Deduplicate && r.ID != "" && !seen.Add(r.ID) {
				dropped++
				continue
			}
			merged = append(merged, r)
		}
	}
	if dropped > 0 {
		e.logger.Info("[extractor] Dropped %d duplicate records (%d distinct IDs)", dropped, seen.Size())
	}
	return merged
}

func (e *Extractor) write(ctx context.Context, run *models.Run) error {
	snap := &storage.Snapshot{RunID: run.ID, Date: run.Date, Records: run.Final}
	for _, w := range e.writers {
		location, err := w.WriteSnapshot(ctx, snap)
		if err != nil {
			return fmt.Errorf("extractor: write snapshot: %w", err)
		}
		switch w.(type) {
		case *storage.CSVWriter:
			run.CSVPath = location
		case *storage.JSONWriter:
			run.JSONPath = location
		}
	}
	return nil
}
