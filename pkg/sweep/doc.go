// Package sweep drives a resumable, bounded harvest over an address space.
//
// One Driver serves both sources. What differs is the AddressSpace:
//   - IDRange walks IDs 1..Ceiling in BatchSize units, at most RunLimit IDs per run
//   - Pagination walks offsets PageSize rows at a time and ends on a short page
//
// Each unit is fetched, parsed, appended to the sink and only then
// checkpointed, so an interruption at any point loses at most the unit in
// flight and never skips one.
package sweep
