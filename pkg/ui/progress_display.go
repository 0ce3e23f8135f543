package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"harvester/pkg/models"
	"harvester/pkg/sweep"
)

// ProgressDisplay prints a one-line progress view while a sweep runs.
// It satisfies sweep.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	w          io.Writer
	source     string
	planned    int
	units      int
	records    int
	skipped    int
	cursor     int64
	lastUnit   models.WorkUnit
	startTime  time.Time
	isDebug    bool
	lineLength int
}

// NewProgressDisplay creates a display for a run of planned units
func NewProgressDisplay(w io.Writer, source string, planned int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		w:         w,
		source:    source,
		planned:   planned,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// ObserveUnit updates the counters after a checkpointed unit
func (p *ProgressDisplay) ObserveUnit(_ string, unit models.WorkUnit, records int, skipped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.units++
	p.records += records
	p.lastUnit = unit
	if skipped {
		p.skipped++
	}

	if p.isDebug {
		mark := Green("✓")
		if skipped {
			mark = Yellow("⚠")
		}
		fmt.Fprintf(p.w, "%s %s • %s records\n", mark, unit, humanize.Comma(int64(records)))
		return
	}
	p.printProgress()
}

// ObserveCursor records the checkpoint position
func (p *ProgressDisplay) ObserveCursor(_ string, cursor int64, _ bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = cursor
}

func (p *ProgressDisplay) printProgress() {
	percent := 0.0
	if p.planned > 0 {
		percent = float64(p.units) / float64(p.planned) * 100
	}

	line := fmt.Sprintf("%s [%s] %d/%d units • %s records • %s • %s",
		Cyan(p.source),
		Bar(percent, 20),
		p.units,
		p.planned,
		humanize.Comma(int64(p.records)),
		p.lastUnit,
		p.eta(),
	)
	if p.skipped > 0 {
		line += " • " + Yellow(fmt.Sprintf("%d skipped", p.skipped))
	}

	pad := ""
	if n := p.lineLength - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.lineLength = len(line)
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
}

func (p *ProgressDisplay) eta() string {
	if p.units == 0 || p.units >= p.planned {
		return "done"
	}
	perUnit := time.Since(p.startTime) / time.Duration(p.units)
	return "eta " + Duration(perUnit*time.Duration(p.planned-p.units))
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(report sweep.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isDebug && p.units > 0 {
		fmt.Fprintln(p.w)
	}
	RenderReport(p.w, report)
}
