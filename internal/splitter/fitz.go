package splitter

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// FitzSplitter rasterizes each PDF page to a JPEG with MuPDF.
type FitzSplitter struct {
	quality   int
	validator *Validator
	logger    *observability.Logger
}

// NewFitzSplitter creates a rasterizing splitter.
func NewFitzSplitter(quality int, validator *Validator, logger *observability.Logger) (*FitzSplitter, error) {
	if err := ValidateQuality(quality); err != nil {
		return nil, err
	}
	return &FitzSplitter{
		quality:   quality,
		validator: validator,
		logger:    logger,
	}, nil
}

// Split implements domain.PageSplitter.
func (s *FitzSplitter) Split(ctx context.Context, data []byte, filename string) ([]domain.Page, error) {
	if err := s.validator.ValidateUpload(data, filename); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.SplitFailure(fmt.Sprintf("open %q", filename), err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.SplitFailure(fmt.Sprintf("%q has no pages", filename), nil)
	}

	pages := make([]domain.Page, 0, pageCount)
	for n := 0; n < pageCount; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(n)
		if err != nil {
			return nil, domain.SplitFailure(fmt.Sprintf("render page %d", n+1), err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
			return nil, domain.SplitFailure(fmt.Sprintf("encode page %d as JPG", n+1), err)
		}

		pages = append(pages, domain.Page{
			Number:      n + 1,
			Data:        buf.Bytes(),
			ContentType: "image/jpeg",
		})
	}

	s.logger.Debug().
		Str("filename", filename).
		Int("pages", len(pages)).
		Msg("Document rasterized")

	return pages, nil
}
