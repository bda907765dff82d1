package splitter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Validator checks uploads before they reach the splitting tool.
type Validator struct {
	maxBytes int64
}

// NewValidator creates a validator; maxBytes <= 0 disables the size check.
func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// ValidateUpload validates that data looks like a PDF named filename.
func (v *Validator) ValidateUpload(data []byte, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return domain.ValidationError("filename cannot be empty", nil)
	}

	if len(data) == 0 {
		return domain.ValidationError("document is empty", nil)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %q)", ext), nil)
	}

	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return domain.ValidationError(fmt.Sprintf("document is %d bytes, limit is %d", len(data), v.maxBytes), nil)
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		return domain.ValidationError("document does not start with a PDF header", nil)
	}

	return nil
}

// ValidateQuality validates image quality parameter
func ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}
