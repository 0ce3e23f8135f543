package models

import "fmt"

// Kind distinguishes standalone items from variants (expansions) of another item
type Kind string

const (
	KindItem    Kind = "item"
	KindVariant Kind = "variant"
)

// Record is one normalized catalog entry.
// NaturalKey is the identifier assigned by the source and may be empty.
type Record struct {
	NaturalKey string `json:"natural_key"`
	Name       string `json:"name"`
	Year       string `json:"year"`
	Kind       Kind   `json:"kind"`
}

// Columns is the fixed field order of every sink
var Columns = []string{"natural_key", "name", "year", "kind"}

// Row returns the record's fields in Columns order
func (r Record) Row() []string {
	return []string{r.NaturalKey, r.Name, r.Year, string(r.Kind)}
}

// WorkUnit is an inclusive slice [Start, End] of the address space fetched in one request
type WorkUnit struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Width is the number of positions the unit covers
func (u WorkUnit) Width() int64 {
	return u.End - u.Start + 1
}

func (u WorkUnit) String() string {
	return fmt.Sprintf("%d-%d", u.Start, u.End)
}

// RawBatch is the opaque payload fetched for one work unit.
// Degraded marks the empty payload substituted after the fetcher gave up.
type RawBatch struct {
	Unit     WorkUnit
	Body     []byte
	Degraded bool
}

// ParsedBatch is what a parser made of one RawBatch.
// Observed counts raw entries before any filtering or de-duplication.
// Malformed is set when the body could not be decoded at all; such a batch
// carries no end-of-data signal.
type ParsedBatch struct {
	Records   []Record
	Observed  int
	Malformed bool
}
