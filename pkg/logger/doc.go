// Package logger provides the structured logging interface used across the harvester.
//
// It wraps zerolog. Console output is colourised and written to stderr; when a
// log file is configured, JSON lines are appended to it as well.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("source", "bgg")
//	log.InfoWithFields("Sweep started", map[string]interface{}{
//	    "start": 1,
//	    "end":   10000,
//	})
//
// Components take a Logger at construction. Tests pass NewTestLogger() to
// assert on what was logged, or NewNopLogger() to silence output.
package logger
