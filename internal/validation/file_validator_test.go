package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shared/testutil"
)

func TestFileValidator_ValidateDatasetFile(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T) string
		wantErr       bool
		errorContains string
	}{
		{
			name: "valid csv",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "shipments.csv")
				require.NoError(t, os.WriteFile(path, []byte("date,center_name\n"), 0644))
				return path
			},
		},
		{
			name: "upper case extension",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "SHIPMENTS.CSV")
				require.NoError(t, os.WriteFile(path, []byte("date,center_name\n"), 0644))
				return path
			},
		},
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			wantErr:       true,
			errorContains: "does not exist",
		},
		{
			name: "directory",
			setup: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "data.csv")
				require.NoError(t, os.Mkdir(dir, 0755))
				return dir
			},
			wantErr:       true,
			errorContains: "is a directory",
		},
		{
			name: "wrong extension",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "shipments.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
				return path
			},
			wantErr:       true,
			errorContains: "not a CSV file",
		},
		{
			name: "empty file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "shipments.csv")
				require.NoError(t, os.WriteFile(path, nil, 0644))
				return path
			},
			wantErr:       true,
			errorContains: "is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			v := NewFileValidator(logger)

			err := v.ValidateDatasetFile(tt.setup(t))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
		})
	}
}

func TestFileValidator_ValidateReportsDirectory(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)

	dir := filepath.Join(t.TempDir(), "reports", "nested")
	require.NoError(t, v.ValidateReportsDirectory(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(dir, ".write_test"))
	assert.True(t, os.IsNotExist(err), "probe file is removed")

	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	err = v.ValidateReportsDirectory(filepath.Join(blocker, "reports"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
	assert.True(t, handler.HasMessage("Failed to create reports directory"))
}
