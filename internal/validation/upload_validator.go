package validation

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
)

var (
	// ErrUnsupportedExtension reports an upload whose extension is outside
	// the whitelist.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrFileTooLarge reports an upload above the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")

	// ErrEmptyFile reports an upload with no content.
	ErrEmptyFile = errors.New("empty upload")

	// ErrNotUTF8 reports CSV content that is not valid UTF-8 text.
	ErrNotUTF8 = errors.New("file is not valid UTF-8")
)

// allowedExtensions is the upload whitelist. Workbooks are binary archives,
// so only CSV uploads get the encoding check.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// UploadValidator checks dataset uploads before they reach the parser:
// extension whitelist, size cap, and UTF-8 encoding for CSV text.
type UploadValidator struct {
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadValidator creates a validator with the given size cap. A
// non-positive cap falls back to the configured default.
func NewUploadValidator(maxBytes int64, logger *slog.Logger) *UploadValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}
	return &UploadValidator{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes returns the configured upload size cap.
func (v *UploadValidator) MaxBytes() int64 {
	return v.maxBytes
}

// ValidateUpload runs the full check sequence for a named upload.
func (v *UploadValidator) ValidateUpload(filename string, data []byte) error {
	if err := v.ValidateFilename(filename); err != nil {
		return err
	}
	if err := v.ValidateSize(int64(len(data))); err != nil {
		return err
	}
	if !isWorkbook(filename) {
		return v.ValidateCSVText(data)
	}
	return nil
}

// ValidateFilename checks the upload name against the extension whitelist.
func (v *UploadValidator) ValidateFilename(filename string) error {
	base := filepath.Base(filename)
	if base == "" || base == "." {
		v.logger.Warn("Upload rejected: missing filename")
		return fmt.Errorf("%w: missing filename", ErrUnsupportedExtension)
	}

	// Office lock files start with ~$ and are never real workbooks.
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Upload rejected: temporary workbook file",
			slog.String("filename", base))
		return fmt.Errorf("%w: temporary file %s", ErrUnsupportedExtension, base)
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !allowedExtensions[ext] {
		v.logger.Warn("Upload rejected: unsupported extension",
			slog.String("filename", base),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}

	return nil
}

// ValidateSize checks the upload size against the configured cap.
func (v *UploadValidator) ValidateSize(size int64) error {
	if size <= 0 {
		v.logger.Warn("Upload rejected: empty body")
		return ErrEmptyFile
	}
	if size > v.maxBytes {
		v.logger.Warn("Upload rejected: too large",
			slog.Int64("size", size),
			slog.Int64("limit", v.maxBytes))
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, v.maxBytes)
	}
	return nil
}

// ValidateCSVText checks that CSV content is non-empty UTF-8 text. NUL
// bytes are rejected as well: they survive a UTF-8 validity check but only
// ever appear in binary files handed over with a .csv name.
func (v *UploadValidator) ValidateCSVText(data []byte) error {
	if len(data) == 0 {
		v.logger.Warn("Upload rejected: empty CSV body")
		return ErrEmptyFile
	}
	if !utf8.Valid(data) {
		v.logger.Warn("Upload rejected: invalid UTF-8",
			slog.Int("bytes", len(data)))
		return ErrNotUTF8
	}
	if bytes.IndexByte(data, 0) >= 0 {
		v.logger.Warn("Upload rejected: NUL bytes in CSV body",
			slog.Int("bytes", len(data)))
		return fmt.Errorf("%w: NUL bytes in text", ErrNotUTF8)
	}
	return nil
}

func isWorkbook(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".xlsx"
}
