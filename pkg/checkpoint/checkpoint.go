package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
)

// CurrentVersion is written into every saved checkpoint
const CurrentVersion = 1

// Checkpoint is the durable resume position of one sweep.
// Cursor is the last consumed ID for ID sweeps and the next row offset for
// page sweeps. Once Exhausted is persisted the sweep is a no-op until reset.
type Checkpoint struct {
	Cursor    int64     `json:"cursor"`
	Exhausted bool      `json:"exhausted"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Initial returns the checkpoint of a sweep that has never run
func Initial() *Checkpoint {
	return &Checkpoint{Version: CurrentVersion}
}

// onDisk accepts both the current layout and the older
// {"last_id": N} / {"offset": N, "done": bool} state files.
type onDisk struct {
	Cursor    *int64    `json:"cursor"`
	Exhausted *bool     `json:"exhausted"`
	LastID    *int64    `json:"last_id"`
	Offset    *int64    `json:"offset"`
	Done      *bool     `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

func decode(data []byte) (*Checkpoint, error) {
	var raw onDisk
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	cp := &Checkpoint{UpdatedAt: raw.UpdatedAt, Version: raw.Version}
	switch {
	case raw.Cursor != nil:
		cp.Cursor = *raw.Cursor
	case raw.LastID != nil:
		cp.Cursor = *raw.LastID
	case raw.Offset != nil:
		cp.Cursor = *raw.Offset
	default:
		return nil, fmt.Errorf("no cursor field")
	}
	if cp.Cursor < 0 {
		return nil, fmt.Errorf("negative cursor %d", cp.Cursor)
	}

	if raw.Exhausted != nil {
		cp.Exhausted = *raw.Exhausted
	} else if raw.Done != nil {
		cp.Exhausted = *raw.Done
	}
	if cp.Version == 0 {
		cp.Version = CurrentVersion
	}
	return cp, nil
}

// Manager owns one checkpoint file
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager for the checkpoint stored at path
func NewManager(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: path,
		logger:         log.WithField("checkpoint", path),
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load returns the stored checkpoint, or the initial value when none exists.
// It never fails: an unreadable file is logged, moved aside to <path>.corrupt
// and the sweep restarts from the initial value.
func (m *Manager) Load() *Checkpoint {
	cp, err := m.read()
	if err == nil {
		if cp == nil {
			m.logger.Debug("No checkpoint found, starting from the beginning")
			return Initial()
		}
		m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
			"cursor":    cp.Cursor,
			"exhausted": cp.Exhausted,
		})
		return cp
	}

	m.logger.WithError(err).Warn("Checkpoint unreadable, restarting sweep from the beginning")
	if qerr := m.quarantine(); qerr != nil {
		m.logger.WithError(qerr).Warn("Failed to move corrupt checkpoint aside")
	}
	return Initial()
}

// Peek reads the checkpoint without touching the file system.
// A corrupt file yields the initial value together with a corrupt_checkpoint error.
func (m *Manager) Peek() (*Checkpoint, error) {
	cp, err := m.read()
	if err != nil {
		return Initial(), err
	}
	if cp == nil {
		return Initial(), nil
	}
	return cp, nil
}

// read returns (nil, nil) when the file does not exist
func (m *Manager) read() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, herrors.Wrap(herrors.ErrorTypeCorruptCheckpoint, "checkpoint.load", err)
	}

	cp, err := decode(data)
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrorTypeCorruptCheckpoint, "checkpoint.load", err)
	}
	return cp, nil
}

// Save writes the checkpoint atomically: temp file, fsync, rename
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	cp.Version = CurrentVersion

	if dir := filepath.Dir(m.checkpointPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return herrors.LocalIO("checkpoint.save", fmt.Errorf("failed to create checkpoint directory: %w", err))
		}
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return herrors.LocalIO("checkpoint.save", fmt.Errorf("failed to create temporary checkpoint file: %w", err))
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return herrors.LocalIO("checkpoint.save", fmt.Errorf("failed to encode checkpoint: %w", err))
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return herrors.LocalIO("checkpoint.save", fmt.Errorf("failed to sync checkpoint file: %w", err))
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return herrors.LocalIO("checkpoint.save", fmt.Errorf("failed to close checkpoint file: %w", err))
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return herrors.LocalIO("checkpoint.save", fmt.Errorf("failed to replace checkpoint file: %w", err))
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"cursor":    cp.Cursor,
		"exhausted": cp.Exhausted,
	})
	return nil
}

// Delete removes the checkpoint file. Used only by an explicit reset.
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return herrors.LocalIO("checkpoint.delete", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// quarantine renames the current file to <path>.corrupt, replacing any earlier one
func (m *Manager) quarantine() error {
	if !m.Exists() {
		return nil
	}
	target := m.checkpointPath + ".corrupt"
	if err := os.Rename(m.checkpointPath, target); err != nil {
		return fmt.Errorf("failed to quarantine checkpoint: %w", err)
	}
	m.logger.WithField("moved_to", target).Warn("Corrupt checkpoint moved aside")
	return nil
}
