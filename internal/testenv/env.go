// Package testenv isolates tests from the user's real config directory.
package testenv

import "path/filepath"

// Dirs contains isolated directories for deskauth state in tests.
type Dirs struct {
	Base   string
	Config string
}

// DeskauthDirs returns conventional test directories rooted at base.
func DeskauthDirs(base string) Dirs {
	return Dirs{
		Base:   base,
		Config: filepath.Join(base, "config"),
	}
}

// Apply points DESKAUTH_CONFIG_DIR at an isolated test directory.
func Apply(setenv func(string, string), base string) Dirs {
	dirs := DeskauthDirs(base)
	setenv("DESKAUTH_CONFIG_DIR", dirs.Config)
	return dirs
}

// ApplySameDir points the config dir at dir itself. Useful in tests that
// expect ConfigDir() to exactly match a temp dir path.
func ApplySameDir(setenv func(string, string), dir string) {
	setenv("DESKAUTH_CONFIG_DIR", dir)
}
