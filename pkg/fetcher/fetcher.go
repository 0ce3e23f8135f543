package fetcher

import (
	"context"

	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/models"
	"harvester/pkg/retry"
)

// Getter performs a single request attempt
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// URLBuilder renders the request URL for one work unit
type URLBuilder func(unit models.WorkUnit) string

// BatchFetcher fetches one work unit with bounded retry. Remote failures
// never escape it: once the retry budget is spent the unit is logged as
// skipped and an empty, degraded batch is returned instead. A rejected
// token is the exception and comes back as an error.
type BatchFetcher struct {
	source string
	getter Getter
	build  URLBuilder
	retry  retry.Config
	logger logger.Logger
}

// New creates a fetcher for one source
func New(source string, getter Getter, build URLBuilder, retryCfg retry.Config, log logger.Logger) *BatchFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("source", source)
	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	return &BatchFetcher{
		source: source,
		getter: getter,
		build:  build,
		retry:  retryCfg,
		logger: log,
	}
}

// Fetch returns the payload for unit. It returns an error only for a
// cancelled ctx or a fatal (auth) failure; everything else degrades to an
// empty batch.
func (f *BatchFetcher) Fetch(ctx context.Context, unit models.WorkUnit) (models.RawBatch, error) {
	url := f.build(unit)

	body, attempts, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		return f.getter.Get(ctx, url)
	}, &f.retry)

	if err == nil {
		return models.RawBatch{Unit: unit, Body: body}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.RawBatch{Unit: unit}, ctxErr
	}

	if herrors.IsFatal(herrors.TypeOf(err)) {
		f.logger.WithError(err).ErrorWithFields("Request rejected, stopping sweep", map[string]interface{}{
			"start":    unit.Start,
			"end":      unit.End,
			"attempts": attempts,
		})
		return models.RawBatch{Unit: unit}, err
	}

	logger.LogSkip(f.logger, f.source, unit.Start, unit.End, attempts, err)
	return models.RawBatch{Unit: unit, Degraded: true}, nil
}
