package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Backup is the secondary storage channel holding the active device id
// outside the Local Durable Store.
type Backup interface {
	// Load returns the stored device id, or "" when there is none.
	Load() (string, error)
	Save(deviceID string) error
	Clear() error
}

// FileBackup keeps the marker in a small YAML file. It must not live inside
// the database file or its WAL, otherwise a wiped store takes it along.
type FileBackup struct {
	path string
	now  func() time.Time
}

var _ Backup = (*FileBackup)(nil)

// NewFileBackup returns a marker stored at path.
func NewFileBackup(path string) *FileBackup {
	return &FileBackup{path: path, now: time.Now}
}

// Path returns the marker location.
func (b *FileBackup) Path() string {
	return b.path
}

type marker struct {
	DeviceID  string    `yaml:"device_id"`
	WrittenAt time.Time `yaml:"written_at"`
}

func (b *FileBackup) Load() (string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read backup marker: %w", err)
	}

	var m marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parse backup marker: %w", err)
	}
	return m.DeviceID, nil
}

// Save writes the marker via a temp file and rename so a crash never leaves
// a truncated marker behind.
func (b *FileBackup) Save(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("save backup marker: empty device id")
	}
	data, err := yaml.Marshal(marker{DeviceID: deviceID, WrittenAt: b.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode backup marker: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return fmt.Errorf("create temp marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("install backup marker: %w", err)
	}
	return nil
}

func (b *FileBackup) Clear() error {
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup marker: %w", err)
	}
	return nil
}
