package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

// FileValidator checks the shipment dataset and the reports directory
// before the analytics pipeline touches them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateDatasetFile checks that path is a readable, non-empty CSV file.
// Failures are storage errors.
func (v *FileValidator) ValidateDatasetFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Dataset file does not exist",
			slog.String("file", path))
		return apperrors.NewStorageError(fmt.Sprintf("dataset %s does not exist", path), err)
	}
	if err != nil {
		v.logger.Error("Failed to stat dataset file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to stat dataset %s", path), err)
	}
	if info.IsDir() {
		return apperrors.NewStorageError(fmt.Sprintf("dataset %s is a directory, not a file", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		v.logger.Error("Dataset is not a CSV file",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewStorageError(fmt.Sprintf("dataset %s is not a CSV file (extension: %s)", path, ext), nil)
	}
	if info.Size() == 0 {
		return apperrors.NewStorageError(fmt.Sprintf("dataset %s is empty", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Dataset file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("dataset %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("Dataset file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateReportsDirectory creates dir if needed and checks it is writable
func (v *FileValidator) ValidateReportsDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create reports directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("failed to create reports directory %s", dir), err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Reports directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError(fmt.Sprintf("reports directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Reports directory validated",
		slog.String("directory", dir))
	return nil
}
