// Package xdg provides helpers to resolve XDG Base Directory paths for htan.
// It follows the XDG Base Directory specification for locating the credential
// file and the download caches, falling back to the traditional ~/.config and
// ~/.cache locations when the XDG variables are unset.
//
// The application directory keeps the historical "htan-skill" name so that
// credentials and caches written by earlier tooling are picked up unchanged.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under the config and cache roots.
const AppName = "htan-skill"

// ConfigPath returns the XDG config directory for htan without creating it.
// It falls back to ~/.config/htan-skill when XDG_CONFIG_HOME is unset.
func ConfigPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// ConfigDir returns the XDG config directory for htan.
// The directory is created with private permissions (0700) if missing.
func ConfigDir() (string, error) {
	dir, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}

// CacheDir returns the XDG cache directory for htan.
// The directory is created (0755) if missing.
// It falls back to ~/.cache/htan-skill when XDG_CACHE_HOME is unset.
func CacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// HomePath joins elements onto the user's home directory.
// An empty string is returned when the home directory is unknown.
func HomePath(elem ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append([]string{home}, elem...)...)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" {
		return HomePath()
	}
	if len(p) > 1 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator) {
		return HomePath(p[2:])
	}
	return p
}
