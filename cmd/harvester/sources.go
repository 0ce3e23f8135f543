package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"harvester/pkg/bgg"
	"harvester/pkg/checkpoint"
	"harvester/pkg/config"
	herrors "harvester/pkg/errors"
	"harvester/pkg/fetcher"
	"harvester/pkg/httpclient"
	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/ratelimit"
	"harvester/pkg/retry"
	"harvester/pkg/sink"
	"harvester/pkg/sweep"
	"harvester/pkg/wikidata"
)

// source is the per-sweep slice of the configuration
type source struct {
	name      string
	stateFile string
	delay     time.Duration
	space     sweep.AddressSpace
}

func sourceNames() []string {
	return []string{bgg.SourceName, wikidata.SourceName}
}

func lookupSource(cfg *config.Config, name string) (source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case bgg.SourceName:
		return source{
			name:      bgg.SourceName,
			stateFile: cfg.BGG.StateFile,
			delay:     cfg.BGG.Delay,
			space: sweep.IDRange{
				BatchSize: cfg.BGG.BatchSize,
				Ceiling:   cfg.BGG.MaxID,
				RunLimit:  cfg.BGG.RunLimit,
			},
		}, nil
	case wikidata.SourceName:
		return source{
			name:      wikidata.SourceName,
			stateFile: cfg.Wikidata.StateFile,
			delay:     cfg.Wikidata.Delay,
			space: sweep.Pagination{
				PageSize:    cfg.Wikidata.PageSize,
				PagesPerRun: cfg.Wikidata.PagesPerRun,
			},
		}, nil
	default:
		return source{}, fmt.Errorf("unknown source %q (expected %s)", name, strings.Join(sourceNames(), " or "))
	}
}

// inspect reads a sweep's checkpoint for display. A corrupt file is reported
// through Status.Corrupt rather than as an error.
func inspect(src source, log logger.Logger) (sweep.Status, error) {
	store := checkpoint.NewManager(src.stateFile, log)
	st, err := sweep.Inspect(src.name, src.space, store, src.delay)
	if err != nil && !herrors.Is(err, herrors.ErrorTypeCorruptCheckpoint) {
		return st, err
	}
	return st, nil
}

// tokenSource resolves a stored API token; *auth.Manager satisfies it
type tokenSource interface {
	Token(source string) (string, error)
}

// resolveToken prefers the configured token (file or BGG_TOKEN) over the credential stores
func resolveToken(cfg *config.Config, tokens tokenSource) (string, error) {
	if cfg.BGG.Token != "" {
		return cfg.BGG.Token, nil
	}
	if tokens == nil {
		return "", fmt.Errorf("no credential store available")
	}
	return tokens.Token(bgg.SourceName)
}

// newFetchParser wires the transport, retry policy and parser for one source
func newFetchParser(cfg *config.Config, src source, m *metrics.Sweep, log logger.Logger) (sweep.Fetcher, sweep.Parser) {
	var (
		client *httpclient.Client
		build  fetcher.URLBuilder
		parser sweep.Parser
	)

	switch src.name {
	case bgg.SourceName:
		client = bgg.NewHTTPClient(cfg.BGG, log)
		build = bgg.URLBuilder(cfg.BGG.APIURL, cfg.BGG.Types)
		parser = bgg.NewParser(log)
	default:
		client = wikidata.NewHTTPClient(cfg.Wikidata, log)
		build = wikidata.URLBuilder(cfg.Wikidata)
		parser = wikidata.NewParser(log)
	}

	if limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize); limiter != nil {
		client.SetLimiter(limiter)
	}

	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
			Multiplier: 2.0,
		},
		ProcessingPause: cfg.Retry.ProcessingPause,
		OnRetry:         m.RetryHook(src.name),
	}

	return fetcher.New(src.name, client, build, retryCfg, log), parser
}

// openSink returns the configured output
func openSink(ctx context.Context, cfg *config.Config, log logger.Logger) (sink.Sink, error) {
	switch cfg.Output.Sink {
	case config.SinkPostgres:
		pg, err := sink.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Table, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return sink.NewCSV(cfg.Output.CSVFile, log), nil
	}
}
