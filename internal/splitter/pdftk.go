// Package splitter breaks uploaded documents into per-page blobs.
package splitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

const (
	sourceName  = "source.pdf"
	pagePattern = "page_%04d.pdf"
	pageScan    = "page_%d.pdf"
	// pdftk writes document metadata next to the burst pages.
	docDataName = "doc_data.txt"
)

// PdftkSplitter bursts a PDF into single-page PDFs with pdftk.
type PdftkSplitter struct {
	bin       string
	runner    Runner
	validator *Validator
	logger    *observability.Logger
}

// NewPdftkSplitter creates a splitter invoking the pdftk binary at bin.
func NewPdftkSplitter(bin string, runner Runner, validator *Validator, logger *observability.Logger) *PdftkSplitter {
	if bin == "" {
		bin = "pdftk"
	}
	return &PdftkSplitter{
		bin:       bin,
		runner:    runner,
		validator: validator,
		logger:    logger,
	}
}

// Split implements domain.PageSplitter. The working directory is removed on every return path.
func (s *PdftkSplitter) Split(ctx context.Context, data []byte, filename string) (pages []domain.Page, err error) {
	if err := s.validator.ValidateUpload(data, filename); err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "recapture-split-*")
	if err != nil {
		return nil, domain.IOError("create temp directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("dir", workDir).Msg("Failed to remove split directory")
		}
	}()

	source := filepath.Join(workDir, sourceName)
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return nil, domain.IOError("write source document", err)
	}

	_, stderr, err := s.runner.Run(ctx, workDir, s.bin, source, "burst", "output", filepath.Join(workDir, pagePattern))
	if err != nil {
		return nil, domain.SplitFailure(
			fmt.Sprintf("pdftk burst of %q failed: %s", filename, strings.TrimSpace(string(stderr))), err)
	}

	_ = os.Remove(filepath.Join(workDir, docDataName))

	matches, err := filepath.Glob(filepath.Join(workDir, "page_*.pdf"))
	if err != nil {
		return nil, domain.IOError("list burst pages", err)
	}
	if len(matches) == 0 {
		return nil, domain.SplitFailure(fmt.Sprintf("pdftk produced no pages for %q", filename), nil)
	}
	matches, err = orderPages(matches)
	if err != nil {
		return nil, domain.SplitFailure(fmt.Sprintf("pdftk output for %q", filename), err)
	}

	pages = make([]domain.Page, 0, len(matches))
	for i, path := range matches {
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("read page %d", i+1), err)
		}
		pages = append(pages, domain.Page{
			Number:      i + 1,
			Data:        blob,
			ContentType: "application/pdf",
		})
	}

	s.logger.Debug().
		Str("filename", filename).
		Int("pages", len(pages)).
		Msg("Document split")

	return pages, nil
}

// orderPages sorts burst page paths by page number. pagePattern pads to four
// digits only, so names alone do not order documents past page 9999.
func orderPages(paths []string) ([]string, error) {
	numbers := make(map[string]int, len(paths))
	for _, p := range paths {
		var n int
		if _, err := fmt.Sscanf(filepath.Base(p), pageScan, &n); err != nil {
			return nil, fmt.Errorf("unexpected page file %s: %w", filepath.Base(p), err)
		}
		numbers[p] = n
	}
	ordered := append([]string(nil), paths...)
	sort.Slice(ordered, func(i, j int) bool { return numbers[ordered[i]] < numbers[ordered[j]] })
	return ordered, nil
}
