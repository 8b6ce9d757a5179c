// Package appsettings loads and saves traybar's JSON settings file.
package appsettings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Manager reads and writes one settings file.
type Manager struct {
	appName string
	path    string
}

// NewManager returns a manager for <user config dir>/<appName>/settings.json.
func NewManager(appName string) *Manager {
	return &Manager{appName: appName}
}

// NewFileManager returns a manager for the settings file at path.
func NewFileManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the settings file path.
func (m *Manager) Path() (string, error) {
	if m.path != "" {
		return m.path, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(configDir, m.appName, "settings.json"), nil
}

// Load decodes the settings file into settings. It returns false, leaving
// settings untouched, when the file is missing or empty.
func (m *Manager) Load(settings any) (bool, error) {
	path, err := m.Path()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read settings file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return false, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return true, nil
}

// Save writes settings, replacing the file atomically.
func (m *Manager) Save(settings any) error {
	path, err := m.Path()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error wins
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
