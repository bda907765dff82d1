package splitter

import (
	"context"
	"fmt"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/config"
	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// New builds the splitter selected by cfg.Backend.
func New(cfg config.SplitterConfig, logger *observability.Logger) (domain.PageSplitter, error) {
	validator := NewValidator(cfg.MaxUploadBytes)

	var s domain.PageSplitter
	switch cfg.Backend {
	case "pdftk":
		s = NewPdftkSplitter(cfg.PdftkPath, NewExecRunner(logger), validator, logger)
	case "fitz":
		fs, err := NewFitzSplitter(cfg.JPEGQuality, validator, logger)
		if err != nil {
			return nil, err
		}
		s = fs
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown splitter backend %q", cfg.Backend), nil)
	}

	if cfg.Timeout > 0 {
		s = WithTimeout(s, cfg.Timeout)
	}
	return s, nil
}

type timeoutSplitter struct {
	next    domain.PageSplitter
	timeout time.Duration
}

// WithTimeout bounds every Split call of next.
func WithTimeout(next domain.PageSplitter, timeout time.Duration) domain.PageSplitter {
	return &timeoutSplitter{next: next, timeout: timeout}
}

func (t *timeoutSplitter) Split(ctx context.Context, data []byte, filename string) ([]domain.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Split(ctx, data, filename)
}
