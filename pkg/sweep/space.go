package sweep

import (
	"errors"
	"fmt"

	"harvester/pkg/models"
)

// AddressSpace is what distinguishes one sweep variant from another:
// how a run is cut into work units, where the cursor lands after a unit
// and when the space has run out.
type AddressSpace interface {
	// Kind names the variant for logs and status output
	Kind() string
	// Validate rejects a space that could never plan a unit
	Validate() error
	// Plan returns the units of one invocation starting after cursor
	Plan(cursor int64) []models.WorkUnit
	// Next is the cursor value once unit is consumed
	Next(unit models.WorkUnit) int64
	// Exhausted reports whether the sweep is finished after a unit
	Exhausted(cursor int64, batch models.RawBatch, parsed models.ParsedBatch) bool
	// Progress summarizes the remaining work from cursor
	Progress(cursor int64) Progress
}

// Progress is the part of a status report that depends on the address space.
// Zero values mean unknown: a page sweep has no ceiling.
type Progress struct {
	Ceiling        int64   `json:"ceiling,omitempty"`
	Percent        float64 `json:"percent,omitempty"`
	RemainingUnits int64   `json:"remaining_units,omitempty"`
	RemainingRuns  int64   `json:"remaining_runs,omitempty"`
	// UnitsNextRun is how many units the next invocation will fetch
	UnitsNextRun int `json:"units_next_run"`
}

// IDRange sweeps the IDs 1..Ceiling in units of BatchSize, at most
// RunLimit IDs per invocation. The cursor is the last consumed ID.
type IDRange struct {
	BatchSize int
	Ceiling   int64
	RunLimit  int64
}

func (r IDRange) Kind() string { return "id" }

func (r IDRange) Validate() error {
	var errs []error
	if r.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", r.BatchSize))
	}
	if r.Ceiling <= 0 {
		errs = append(errs, fmt.Errorf("ID ceiling must be positive, got %d", r.Ceiling))
	}
	if r.RunLimit <= 0 {
		errs = append(errs, fmt.Errorf("run limit must be positive, got %d", r.RunLimit))
	}
	return errors.Join(errs...)
}

func (r IDRange) Plan(cursor int64) []models.WorkUnit {
	start := cursor + 1
	if start > r.Ceiling || r.BatchSize <= 0 || r.RunLimit <= 0 {
		return nil
	}
	end := min(start+r.RunLimit-1, r.Ceiling)

	units := make([]models.WorkUnit, 0, ceilDiv(end-start+1, int64(r.BatchSize)))
	for s := start; s <= end; s += int64(r.BatchSize) {
		units = append(units, models.WorkUnit{Start: s, End: min(s+int64(r.BatchSize)-1, end)})
	}
	return units
}

func (r IDRange) Next(unit models.WorkUnit) int64 {
	return unit.End
}

func (r IDRange) Exhausted(cursor int64, _ models.RawBatch, _ models.ParsedBatch) bool {
	return cursor >= r.Ceiling
}

func (r IDRange) Progress(cursor int64) Progress {
	p := Progress{Ceiling: r.Ceiling}
	if r.Ceiling <= 0 {
		return p
	}

	done := min(max(cursor, 0), r.Ceiling)
	p.Percent = float64(done) / float64(r.Ceiling) * 100
	remaining := r.Ceiling - done
	if remaining == 0 {
		return p
	}

	if r.BatchSize > 0 {
		p.RemainingUnits = ceilDiv(remaining, int64(r.BatchSize))
		p.UnitsNextRun = int(ceilDiv(min(remaining, r.RunLimit), int64(r.BatchSize)))
	}
	if r.RunLimit > 0 {
		p.RemainingRuns = ceilDiv(remaining, r.RunLimit)
	}
	return p
}

// Pagination sweeps a result set PageSize rows at a time, PagesPerRun pages
// per invocation. The cursor is the offset of the next page to fetch.
type Pagination struct {
	PageSize    int
	PagesPerRun int
}

func (p Pagination) Kind() string { return "page" }

func (p Pagination) Validate() error {
	var errs []error
	if p.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", p.PageSize))
	}
	if p.PagesPerRun <= 0 {
		errs = append(errs, fmt.Errorf("pages per run must be positive, got %d", p.PagesPerRun))
	}
	return errors.Join(errs...)
}

func (p Pagination) Plan(cursor int64) []models.WorkUnit {
	if p.PageSize <= 0 || p.PagesPerRun <= 0 {
		return nil
	}
	units := make([]models.WorkUnit, 0, p.PagesPerRun)
	for i := 0; i < p.PagesPerRun; i++ {
		start := cursor + int64(i)*int64(p.PageSize)
		units = append(units, models.WorkUnit{Start: start, End: start + int64(p.PageSize) - 1})
	}
	return units
}

func (p Pagination) Next(unit models.WorkUnit) int64 {
	return unit.End + 1
}

// Exhausted trusts a short page only when it really came from the source;
// a degraded or undecodable page says nothing about the end of the data.
func (p Pagination) Exhausted(_ int64, batch models.RawBatch, parsed models.ParsedBatch) bool {
	if batch.Degraded || parsed.Malformed {
		return false
	}
	return parsed.Observed < p.PageSize
}

func (p Pagination) Progress(int64) Progress {
	return Progress{UnitsNextRun: p.PagesPerRun}
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
