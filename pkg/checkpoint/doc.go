// Package checkpoint persists the resume position of a sweep.
//
// A checkpoint is a small JSON file:
//
//	{"cursor": 300, "exhausted": false, "updated_at": "...", "version": 1}
//
// Saves go through a temp file and a rename so a crash never leaves a
// half-written checkpoint behind. Loading never fails; a file that cannot be
// parsed is moved to <path>.corrupt and the sweep starts over, which is safe
// because the sink tolerates re-observed records.
package checkpoint
