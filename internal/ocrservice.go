package internal

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/ocr"
)

// OCRService reads song texts from photographed song sheets
type OCRService interface {
	Extract(ctx context.Context, image io.Reader, language string) (string, error)
}

type ocrService struct {
	logger    *logrus.Entry
	extractor ocr.Extractor
}

// NewOCRService creates a new OCR service using the given extractor
func NewOCRService(extractor ocr.Extractor, logger *logrus.Entry) OCRService {
	return &ocrService{
		logger:    logger,
		extractor: extractor,
	}
}

// Extract returns the sanitized text found on the image
func (s *ocrService) Extract(ctx context.Context, image io.Reader, language string) (string, error) {
	text, err := s.extractor.Extract(ctx, image, language)
	if err != nil {
		ctxhelper.LoggerOr(ctx, s.logger).WithError(err).WithField(log.FldLanguage, language).Warn("Text extraction failed")
		if errors.Is(err, ocr.ErrExtractionFailed) {
			return "", MakeErrorWithData(
				http.StatusUnprocessableEntity,
				ErrCodeExtractionFailed,
				"No text could be read from the image",
				err,
			)
		}
		return "", err
	}
	return text, nil
}
