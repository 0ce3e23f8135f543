package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

// CSV appends records to a file with header natural_key,name,year,kind.
// The file is opened per call and never rewritten, so several sweeps can
// share it as long as they do not run at the same time.
type CSV struct {
	path   string
	logger logger.Logger
}

// NewCSV creates a sink writing to path
func NewCSV(path string, log logger.Logger) *CSV {
	if log == nil {
		log = logger.GetLogger()
	}
	return &CSV{path: path, logger: log.WithField("sink", path)}
}

// Path returns the dataset location
func (s *CSV) Path() string {
	return s.path
}

// Append writes records, flushes and fsyncs before returning
func (s *CSV) Append(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.ensureHeader(); err != nil {
		return herrors.LocalIO("sink.append", err)
	}
	if err := s.appendRows(records); err != nil {
		return herrors.LocalIO("sink.append", err)
	}

	s.logger.DebugWithFields("Records appended", map[string]interface{}{
		"records": len(records),
	})
	return nil
}

// Close is a no-op; every Append closes its own handle
func (s *CSV) Close() error {
	return nil
}

// ensureHeader writes the header when the file is absent or empty
func (s *CSV) ensureHeader() error {
	if fi, err := os.Stat(s.path); err == nil && fi.Size() > 0 {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(models.Columns); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	s.logger.Info("Created dataset with header")
	return f.Sync()
}

func (s *CSV) appendRows(records []models.Record) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", s.path, err)
	}
	defer f.Close()

	bufw := bufio.NewWriterSize(f, 1<<16)
	// a row cut short by a crash must not swallow the first new one
	partial, err := endsMidRow(f)
	if err != nil {
		return err
	}
	if partial {
		s.logger.Warn("Output file ends mid-row, starting a new line")
		if err := bufw.WriteByte('\n'); err != nil {
			return err
		}
	}
	w := csv.NewWriter(bufw)
	for _, r := range records {
		if err := w.Write(r.Row()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}

func endsMidRow(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil || fi.Size() == 0 {
		return false, err
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, fi.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
