package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	OutputDirName = "output"
	LogsDirName   = "logs"
	LogFileName   = "pricepipe.log"
)

// Paths contains the default locations, all relative to the executable
// rather than the working directory so scheduled runs behave the same as
// interactive ones.
type Paths struct {
	ExecutableDir string
	OutputDir     string
	LogsDir       string
}

// GetPaths returns the application paths relative to the executable location.
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return PathsFor(filepath.Dir(exe)), nil
}

// PathsFor lays out the application directories under exeDir.
func PathsFor(exeDir string) *Paths {
	return &Paths{
		ExecutableDir: exeDir,
		OutputDir:     filepath.Join(exeDir, OutputDirName),
		LogsDir:       filepath.Join(exeDir, LogsDirName),
	}
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
