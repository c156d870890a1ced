package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved filesystem layout for the application. All
// relative paths resolve against the working directory.
type Paths struct {
	DataDir     string
	ReportsDir  string
	HistoryFile string
	LogsDir     string
}

// ResolvePaths resolves the configured paths to absolute form
func (c *Config) ResolvePaths() (*Paths, error) {
	resolve := func(p string) (string, error) {
		if filepath.IsAbs(p) {
			return p, nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve path %s: %w", p, err)
		}
		return abs, nil
	}

	var paths Paths
	var err error
	if paths.DataDir, err = resolve(c.Paths.DataDir); err != nil {
		return nil, err
	}
	if paths.ReportsDir, err = resolve(c.Paths.ReportsDir); err != nil {
		return nil, err
	}
	if paths.HistoryFile, err = resolve(c.Paths.HistoryFile); err != nil {
		return nil, err
	}
	if paths.LogsDir, err = resolve(c.Paths.LogsDir); err != nil {
		return nil, err
	}
	return &paths, nil
}

// EnsureDirectories creates all required directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.ReportsDir, p.LogsDir, filepath.Dir(p.HistoryFile)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetLogPath returns the path of a log file inside the logs directory
func (p *Paths) GetLogPath(name string) string {
	return filepath.Join(p.LogsDir, name)
}

// GetReportPath returns the path of a report file inside the reports
// directory
func (p *Paths) GetReportPath(name string) string {
	return filepath.Join(p.ReportsDir, name)
}
