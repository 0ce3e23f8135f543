package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"harvester/pkg/checkpoint"
	"harvester/pkg/logger"
	"harvester/pkg/models"
	"harvester/pkg/retry"
)

// State is where a driver is in its lifecycle
type State string

const (
	StateIdle      State = "idle"
	StateSweeping  State = "sweeping"
	StatePaused    State = "paused"
	StateExhausted State = "exhausted"
)

// Fetcher returns the raw payload of one unit. Transient failures are
// expected to come back as a degraded batch, not as an error.
type Fetcher interface {
	Fetch(ctx context.Context, unit models.WorkUnit) (models.RawBatch, error)
}

// Parser turns a raw payload into records and never fails
type Parser interface {
	Parse(batch models.RawBatch) models.ParsedBatch
}

// Sink durably appends records
type Sink interface {
	Append(ctx context.Context, records []models.Record) error
}

// Observer is notified after every checkpointed unit. ObserveCursor is also
// called once when a run ends, including a run with nothing to do.
type Observer interface {
	ObserveUnit(source string, unit models.WorkUnit, records int, skipped bool)
	ObserveCursor(source string, cursor int64, exhausted bool)
}

// Config holds everything a Driver is built from
type Config struct {
	Source  string
	Space   AddressSpace
	Fetcher Fetcher
	Parser  Parser
	Sink    Sink
	Store   *checkpoint.Manager
	// Delay is the pause between consecutive units of one invocation
	Delay    time.Duration
	Sleep    retry.SleepFunc
	Observer Observer
	Logger   logger.Logger
}

// Report summarizes one invocation
type Report struct {
	Source      string        `json:"source"`
	State       State         `json:"state"`
	Units       int           `json:"units"`
	Records     int           `json:"records"`
	Skipped     int           `json:"skipped"`
	StartCursor int64         `json:"start_cursor"`
	EndCursor   int64         `json:"end_cursor"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Status is a read-only view of a sweep's checkpoint
type Status struct {
	Source    string           `json:"source"`
	Kind      string           `json:"kind"`
	Cursor    int64            `json:"cursor"`
	Exhausted bool             `json:"exhausted"`
	UpdatedAt time.Time        `json:"updated_at,omitempty"`
	Next      *models.WorkUnit `json:"next,omitempty"` // span of the next run
	Estimate  time.Duration    `json:"estimate"`
	Corrupt   bool             `json:"corrupt,omitempty"`
	Progress
}

// Driver runs the fetch, parse, append, checkpoint loop for one source.
// It is single-use per invocation and not safe for concurrent Run calls;
// the caller serializes invocations with a lock file.
type Driver struct {
	source   string
	space    AddressSpace
	fetcher  Fetcher
	parser   Parser
	sink     Sink
	store    *checkpoint.Manager
	delay    time.Duration
	sleep    retry.SleepFunc
	observer Observer
	logger   logger.Logger

	mu    sync.Mutex
	state State
}

// New validates cfg and creates a driver
func New(cfg Config) (*Driver, error) {
	var errs []error
	if cfg.Source == "" {
		errs = append(errs, errors.New("source name is required"))
	}
	if cfg.Space == nil {
		errs = append(errs, errors.New("address space is required"))
	} else if err := cfg.Space.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid %s address space: %w", cfg.Space.Kind(), err))
	}
	if cfg.Fetcher == nil {
		errs = append(errs, errors.New("fetcher is required"))
	}
	if cfg.Parser == nil {
		errs = append(errs, errors.New("parser is required"))
	}
	if cfg.Sink == nil {
		errs = append(errs, errors.New("sink is required"))
	}
	if cfg.Store == nil {
		errs = append(errs, errors.New("checkpoint store is required"))
	}
	if cfg.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", cfg.Delay))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.Sleep == nil {
		cfg.Sleep = retry.Wait
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	return &Driver{
		source:   cfg.Source,
		space:    cfg.Space,
		fetcher:  cfg.Fetcher,
		parser:   cfg.Parser,
		sink:     cfg.Sink,
		store:    cfg.Store,
		delay:    cfg.Delay,
		sleep:    cfg.Sleep,
		observer: cfg.Observer,
		logger:   cfg.Logger.WithField("source", cfg.Source),
		state:    StateIdle,
	}, nil
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Run executes one invocation. It returns a nil error when the run ended
// in Paused or Exhausted; a non-nil error means the run stopped early and
// the checkpoint reflects only the units completed before the failure.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	started := time.Now()
	cp := d.store.Load()
	report := Report{
		Source:      d.source,
		State:       StateIdle,
		StartCursor: cp.Cursor,
		EndCursor:   cp.Cursor,
	}

	finish := func(state State, err error) (Report, error) {
		report.State = state
		report.Elapsed = time.Since(started)
		d.setState(state)
		if d.observer != nil {
			d.observer.ObserveCursor(d.source, cp.Cursor, cp.Exhausted)
		}

		summary := map[string]interface{}{
			"units":   report.Units,
			"records": report.Records,
			"skipped": report.Skipped,
			"cursor":  report.EndCursor,
			"elapsed": report.Elapsed,
		}
		if err != nil {
			d.logger.WithError(err).ErrorWithFields("Sweep aborted", summary)
		} else {
			logger.LogSweepStop(d.logger, d.source, string(state), summary)
		}
		return report, err
	}

	if cp.Exhausted {
		d.logger.Info("Sweep already exhausted, nothing to do")
		return finish(StateExhausted, nil)
	}

	units := d.space.Plan(cp.Cursor)
	if len(units) == 0 {
		// an ID range whose cursor already reached the ceiling
		done := *cp
		done.Exhausted = true
		if err := d.store.Save(&done); err != nil {
			return finish(StatePaused, err)
		}
		cp = &done
		return finish(StateExhausted, nil)
	}

	d.setState(StateSweeping)
	logger.LogSweepStart(d.logger, d.source, map[string]interface{}{
		"kind":     d.space.Kind(),
		"cursor":   cp.Cursor,
		"first":    units[0].Start,
		"last":     units[len(units)-1].End,
		"units":    len(units),
		"estimate": time.Duration(len(units)) * d.delay,
	})

	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return finish(StatePaused, err)
		}

		unitStarted := time.Now()
		batch, err := d.fetcher.Fetch(ctx, unit)
		if err != nil {
			return finish(StatePaused, err)
		}

		parsed := d.parser.Parse(batch)
		if len(parsed.Records) > 0 {
			if err := d.sink.Append(ctx, parsed.Records); err != nil {
				return finish(StatePaused, err)
			}
		}

		next := *cp
		next.Cursor = d.space.Next(unit)
		next.Exhausted = d.space.Exhausted(next.Cursor, batch, parsed)
		if err := d.store.Save(&next); err != nil {
			return finish(StatePaused, err)
		}
		cp = &next

		report.Units++
		report.Records += len(parsed.Records)
		if batch.Degraded {
			report.Skipped++
		}
		report.EndCursor = cp.Cursor

		if d.observer != nil {
			d.observer.ObserveUnit(d.source, unit, len(parsed.Records), batch.Degraded)
			d.observer.ObserveCursor(d.source, cp.Cursor, cp.Exhausted)
		}
		logger.LogUnit(d.logger, d.source, unit.Start, unit.End, len(parsed.Records), time.Since(unitStarted))

		if cp.Exhausted {
			return finish(StateExhausted, nil)
		}

		if i < len(units)-1 {
			if err := d.sleep(ctx, d.delay); err != nil {
				return finish(StatePaused, err)
			}
		}
	}

	return finish(StatePaused, nil)
}

// Status reads the checkpoint without modifying anything on disk. A corrupt
// checkpoint is reported with Corrupt set alongside the read error.
func (d *Driver) Status() (Status, error) {
	return Inspect(d.source, d.space, d.store, d.delay)
}

// Inspect reports the status of a sweep from its checkpoint alone. It needs
// no fetcher or sink and never touches the file.
func Inspect(source string, space AddressSpace, store *checkpoint.Manager, delay time.Duration) (Status, error) {
	cp, err := store.Peek()

	st := Status{
		Source:    source,
		Kind:      space.Kind(),
		Cursor:    cp.Cursor,
		Exhausted: cp.Exhausted,
		UpdatedAt: cp.UpdatedAt,
		Corrupt:   err != nil,
		Progress:  space.Progress(cp.Cursor),
	}

	st.UnitsNextRun = 0
	if !cp.Exhausted {
		if units := space.Plan(cp.Cursor); len(units) > 0 {
			st.Next = &models.WorkUnit{Start: units[0].Start, End: units[len(units)-1].End}
			st.UnitsNextRun = len(units)
		}
	}
	st.Estimate = time.Duration(st.UnitsNextRun) * delay

	return st, err
}

type observers []Observer

// Observers fans notifications out to every non-nil observer
func Observers(obs ...Observer) Observer {
	var list observers
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

func (o observers) ObserveUnit(source string, unit models.WorkUnit, records int, skipped bool) {
	for _, ob := range o {
		ob.ObserveUnit(source, unit, records, skipped)
	}
}

func (o observers) ObserveCursor(source string, cursor int64, exhausted bool) {
	for _, ob := range o {
		ob.ObserveCursor(source, cursor, exhausted)
	}
}
