// Package config reads and writes the portal credential file in the XDG
// config dir. It is the last tier of credential resolution; secrets normally
// live in the OS keychain and the file exists for hosts without one.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ncihtan/htan-claude/internal/xdg"
)

// PortalFile is the credential file name under the config dir.
const PortalFile = "portal.json"

// PortalPath returns the path to the portal credential file.
// The directory is not created.
func PortalPath() (string, error) {
	dir, err := xdg.ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PortalFile), nil
}

// LoadPortal returns the raw file contents.
// A missing file returns an error matching os.ErrNotExist.
func LoadPortal() ([]byte, error) {
	p, err := PortalPath()
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// SavePortal writes data with 0600 permissions inside a 0700 directory and
// returns the written path.
func SavePortal(data []byte) (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, PortalFile)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", err
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(p, 0o600); err != nil {
		return "", err
	}
	return p, nil
}

// RemovePortal deletes the credential file. A missing file is not an error.
func RemovePortal() error {
	p, err := PortalPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PortalExists reports whether the credential file is present.
func PortalExists() bool {
	p, err := PortalPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}
