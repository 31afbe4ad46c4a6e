package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved application directories.
// Relative entries of PathsConfig are joined onto RootDir.
type Paths struct {
	RootDir    string
	DataDir    string
	ReportsDir string
	LogsDir    string
}

// NewPaths resolves cfg into absolute directories
func NewPaths(cfg PathsConfig) (*Paths, error) {
	root := cfg.RootDir
	if root == "" {
		root = "."
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root dir %s: %w", root, err)
	}

	resolve := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(absRoot, p)
	}

	return &Paths{
		RootDir:    absRoot,
		DataDir:    resolve(cfg.DataDir, DefaultDataDir),
		ReportsDir: resolve(cfg.ReportsDir, DefaultReportsDir),
		LogsDir:    resolve(cfg.LogsDir, DefaultLogsDir),
	}, nil
}

// EnsureDirectories creates all necessary directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.ReportsDir, p.LogsDir}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Resolve joins a relative path onto RootDir; absolute paths pass through.
func (p *Paths) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.RootDir, path)
}

// GetReportPath returns the full path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetDataPath returns the full path for a data file
func (p *Paths) GetDataPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// GetLogPath returns the full path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogPathResolution logs the resolved directories at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Resolved application paths",
		slog.String("root_dir", p.RootDir),
		slog.String("data_dir", p.DataDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
