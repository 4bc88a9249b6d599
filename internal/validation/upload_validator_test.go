package validation

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/k-laffite/water-quality-visualizer/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNewUploadValidator(t *testing.T) {
	t.Run("keeps explicit cap", func(t *testing.T) {
		validator := NewUploadValidator(2048, slog.Default())
		assert.Equal(t, int64(2048), validator.MaxBytes())
	})

	t.Run("non-positive cap falls back to default", func(t *testing.T) {
		validator := NewUploadValidator(0, nil)
		assert.Equal(t, int64(config.DefaultMaxUploadBytes), validator.MaxBytes())

		validator = NewUploadValidator(-1, nil)
		assert.Equal(t, int64(config.DefaultMaxUploadBytes), validator.MaxBytes())
	})
}

func TestUploadValidator_ValidateFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantErr     error
		description string
	}{
		{
			name:        "csv file",
			filename:    "river_readings.csv",
			description: "CSV uploads are allowed",
		},
		{
			name:        "xlsx file",
			filename:    "survey.xlsx",
			description: "Workbook uploads are allowed",
		},
		{
			name:        "uppercase extension",
			filename:    "RIVER.CSV",
			description: "Extension match is case-insensitive",
		},
		{
			name:        "filename with path",
			filename:    "uploads/2025/river.csv",
			description: "Only the base name matters for the whitelist",
		},
		{
			name:        "text file",
			filename:    "notes.txt",
			wantErr:     ErrUnsupportedExtension,
			description: "Unlisted extensions are rejected",
		},
		{
			name:        "legacy xls",
			filename:    "old.xls",
			wantErr:     ErrUnsupportedExtension,
			description: "Legacy binary workbooks are rejected",
		},
		{
			name:        "no extension",
			filename:    "data",
			wantErr:     ErrUnsupportedExtension,
			description: "Extensionless names are rejected",
		},
		{
			name:        "office lock file",
			filename:    "~$survey.xlsx",
			wantErr:     ErrUnsupportedExtension,
			description: "Office temporary files are rejected",
		},
		{
			name:        "empty name",
			filename:    "",
			wantErr:     ErrUnsupportedExtension,
			description: "Empty names are rejected",
		},
	}

	validator := NewUploadValidator(1024, slog.Default())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateFilename(tt.filename)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr, tt.description)
			} else {
				assert.NoError(t, err, tt.description)
			}
		})
	}
}

func TestUploadValidator_ValidateSize(t *testing.T) {
	validator := NewUploadValidator(100, slog.Default())

	assert.NoError(t, validator.ValidateSize(1))
	assert.NoError(t, validator.ValidateSize(100))

	err := validator.ValidateSize(101)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Contains(t, err.Error(), "limit 100")

	assert.ErrorIs(t, validator.ValidateSize(0), ErrEmptyFile)
	assert.ErrorIs(t, validator.ValidateSize(-5), ErrEmptyFile)
}

func TestUploadValidator_ValidateCSVText(t *testing.T) {
	validator := NewUploadValidator(1024, slog.Default())

	t.Run("plain ascii", func(t *testing.T) {
		assert.NoError(t, validator.ValidateCSVText([]byte("site,ph\nA,7.1\n")))
	})

	t.Run("multibyte utf8", func(t *testing.T) {
		assert.NoError(t, validator.ValidateCSVText([]byte("ort,ph\nZürich,7.4\n")))
	})

	t.Run("empty body", func(t *testing.T) {
		assert.ErrorIs(t, validator.ValidateCSVText(nil), ErrEmptyFile)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		// 0xFF 0xFE is a UTF-16 BOM and never valid UTF-8.
		err := validator.ValidateCSVText([]byte{0xFF, 0xFE, 's', 0x00})
		assert.ErrorIs(t, err, ErrNotUTF8)
	})

	t.Run("nul bytes", func(t *testing.T) {
		err := validator.ValidateCSVText([]byte("site,ph\x00A,7.1"))
		assert.ErrorIs(t, err, ErrNotUTF8)
	})
}

func TestUploadValidator_ValidateUpload(t *testing.T) {
	validator := NewUploadValidator(64, slog.Default())

	t.Run("valid csv upload", func(t *testing.T) {
		err := validator.ValidateUpload("river.csv", []byte("site,ph\nA,7.1\n"))
		assert.NoError(t, err)
	})

	t.Run("workbook skips the encoding check", func(t *testing.T) {
		// Zip local-file header bytes, not UTF-8 text throughout.
		payload := append([]byte{0x50, 0x4B, 0x03, 0x04}, 0xFF, 0xD8)
		err := validator.ValidateUpload("survey.xlsx", payload)
		assert.NoError(t, err)
	})

	t.Run("binary csv rejected", func(t *testing.T) {
		err := validator.ValidateUpload("river.csv", []byte{0x50, 0x4B, 0x03, 0x04, 0xFF})
		assert.ErrorIs(t, err, ErrNotUTF8)
	})

	t.Run("oversized upload rejected", func(t *testing.T) {
		err := validator.ValidateUpload("river.csv", []byte(strings.Repeat("a,b\n", 20)))
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("bad extension rejected before size", func(t *testing.T) {
		err := validator.ValidateUpload("notes.txt", []byte(strings.Repeat("a", 1000)))
		assert.ErrorIs(t, err, ErrUnsupportedExtension)
	})
}
