package splitter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

func TestValidator_ValidateUpload(t *testing.T) {
	v := NewValidator(64)

	tests := []struct {
		name     string
		data     []byte
		filename string
		wantErr  bool
	}{
		{"valid", samplePDF, "doc.pdf", false},
		{"upper-case extension", samplePDF, "DOC.PDF", false},
		{"empty name", samplePDF, " ", true},
		{"empty body", nil, "doc.pdf", true},
		{"wrong extension", samplePDF, "doc.docx", true},
		{"missing header", []byte("GIF89a"), "doc.pdf", true},
		{"too large", append([]byte("%PDF-"), make([]byte, 100)...), "doc.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload(tt.data, tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFitzSplitter_RejectsQuality(t *testing.T) {
	_, err := NewFitzSplitter(0, NewValidator(0), observability.Nop())
	assert.Error(t, err)
}

type slowSplitter struct{}

func (slowSplitter) Split(ctx context.Context, data []byte, filename string) ([]domain.Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	s := WithTimeout(slowSplitter{}, 10*time.Millisecond)
	_, err := s.Split(context.Background(), samplePDF, "doc.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
