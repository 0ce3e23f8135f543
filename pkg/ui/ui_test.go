package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"harvester/pkg/models"
	"harvester/pkg/sweep"
)

func init() {
	DisableColor()
}

func idStatus() sweep.Status {
	return sweep.Status{
		Source: "bgg",
		Kind:   "id",
		Cursor: 12300,
		Next:   &models.WorkUnit{Start: 12301, End: 22300},
		Progress: sweep.Progress{
			Ceiling:        420000,
			Percent:        12300.0 / 420000 * 100,
			RemainingUnits: 4077,
			RemainingRuns:  41,
			UnitsNextRun:   100,
		},
		Estimate: time.Minute,
	}
}

func TestBar(t *testing.T) {
	assert.Equal(t, "██████████", Bar(100, 10))
	assert.Equal(t, "█████░░░░░", Bar(50, 10))
	assert.Equal(t, "░░░░░░░░░░", Bar(-3, 10))
	assert.Equal(t, "██████████", Bar(250, 10))
	assert.Empty(t, Bar(50, 0))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "0s", Duration(0))
	assert.Equal(t, "45s", Duration(45*time.Second))
	assert.Equal(t, "12m30s", Duration(12*time.Minute+30*time.Second))
	assert.Equal(t, "3h5m", Duration(3*time.Hour+5*time.Minute))
}

func TestIDSweepTexts(t *testing.T) {
	st := idStatus()
	assert.Equal(t, "12,300 / 420,000 (2.9%)", ProgressText(st))
	assert.Equal(t, "~41 runs remaining", RemainingText(st))
	assert.Equal(t, "IDs 12,301–22,300 (100 batches)", NextRunText(st))
}

func TestPageSweepTexts(t *testing.T) {
	st := sweep.Status{
		Source:   "wikidata",
		Kind:     "page",
		Cursor:   20000,
		Next:     &models.WorkUnit{Start: 20000, End: 29999},
		Progress: sweep.Progress{UnitsNextRun: 1},
	}
	assert.Equal(t, "20,000 rows scanned", ProgressText(st))
	assert.Equal(t, "rows 20,001–30,000", NextRunText(st))
	assert.Equal(t, "unknown", RemainingText(st))

	st.Exhausted = true
	st.Next = nil
	assert.Equal(t, "complete", RemainingText(st))
	assert.Equal(t, "nothing, sweep complete", NextRunText(st))
}

func TestCorruptStatusText(t *testing.T) {
	st := idStatus()
	st.Corrupt = true
	assert.Contains(t, ProgressText(st), "unreadable")
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	wd := idStatus()
	wd.Source = "wikidata"
	wd.Corrupt = true

	RenderStatus(&buf, []sweep.Status{idStatus(), wd})

	out := buf.String()
	assert.Contains(t, out, "bgg")
	assert.Contains(t, out, "~41 runs remaining")
	assert.Contains(t, out, "IDs 12,301–22,300")
	assert.Contains(t, out, "~1m0s")
	assert.Contains(t, out, "checkpoint file is corrupt")
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	RenderReport(&buf, sweep.Report{
		Source:      "bgg",
		State:       sweep.StatePaused,
		Units:       100,
		Records:     8734,
		Skipped:     2,
		StartCursor: 0,
		EndCursor:   10000,
		Elapsed:     75 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "bgg paused")
	assert.Contains(t, out, "100 units, 8,734 records in 1m15s")
	assert.Contains(t, out, "cursor 0 → 10,000")
	assert.Contains(t, out, "2 units skipped")
}

func TestProgressDisplay(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "bgg", 2, false)

	p.ObserveUnit("bgg", models.WorkUnit{Start: 1, End: 100}, 90, false)
	p.ObserveCursor("bgg", 100, false)
	p.ObserveUnit("bgg", models.WorkUnit{Start: 101, End: 200}, 0, true)
	p.Complete(sweep.Report{Source: "bgg", State: sweep.StatePaused, Units: 2, Records: 90, Skipped: 1, EndCursor: 200})

	out := buf.String()
	assert.Contains(t, out, "1/2 units")
	assert.Contains(t, out, "2/2 units")
	assert.Contains(t, out, "1 skipped")
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.Contains(t, out, "bgg paused")
}

func TestProgressDisplayDebug(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "wikidata", 1, true)
	p.ObserveUnit("wikidata", models.WorkUnit{Start: 0, End: 9999}, 4321, false)
	assert.Contains(t, buf.String(), "0-9999 • 4,321 records")
}

func TestQuietMode(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(&bytes.Buffer{})

	SetQuietMode(true)
	PrintInfo("label", "value")
	PrintError("boom")
	SetQuietMode(false)
	PrintSuccess("done")

	out := buf.String()
	assert.NotContains(t, out, "label")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "done")
}
