// Package ocr extracts song texts from photographed or scanned lyric sheets using the tesseract command line tool
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/sanitize"
)

// ErrExtractionFailed is returned when the recognition tool could not produce any text
var ErrExtractionFailed = fmt.Errorf("text extraction failed")

// Extractor turns an image into text
type Extractor interface {
	// Extract reads the image and returns the recognized text. The hint names the expected language(s) like "gu" or
	// "gu+en"; an empty or unknown hint selects the default languages
	Extract(ctx context.Context, image io.Reader, languageHint string) (string, error)
}

// tesseractLanguages maps the supported languages to the names of tesseract's trained data
var tesseractLanguages = map[language.Base]string{
	mustBase(language.Gujarati): "guj",
	mustBase(language.Hindi):    "hin",
	mustBase(language.English):  "eng",
	mustBase(language.German):   "deu",
}

func mustBase(t language.Tag) language.Base {
	b, _ := t.Base()
	return b
}

// Languages converts a language hint into tesseract's language list. Multiple languages may be separated by "+" or
// ",". If any of them is unknown, the fallback is returned instead
func Languages(hint string, fallback string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return fallback
	}
	var ret []string
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(hint, func(r rune) bool { return r == '+' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag, err := language.Parse(part)
		if err != nil {
			return fallback
		}
		base, _ := tag.Base()
		name, ok := tesseractLanguages[base]
		if !ok {
			return fallback
		}
		if !seen[name] {
			seen[name] = true
			ret = append(ret, name)
		}
	}
	if len(ret) == 0 {
		return fallback
	}
	return strings.Join(ret, "+")
}

// Tesseract is an Extractor calling the tesseract binary
type Tesseract struct {
	binary   string
	defLangs string
	timeout  time.Duration
	logger   *logrus.Entry
}

// NewTesseract creates a new extractor from the OCR configuration
func NewTesseract(cfg models.OCRConfig, logger *logrus.Entry) *Tesseract {
	t := &Tesseract{
		binary:   cfg.Binary,
		defLangs: cfg.DefaultLanguages,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:   logger,
	}
	if t.binary == "" {
		t.binary = "tesseract"
	}
	if t.defLangs == "" {
		t.defLangs = "guj+eng"
	}
	return t
}

// Extract implements the Extractor interface
func (t *Tesseract) Extract(ctx context.Context, image io.Reader, languageHint string) (string, error) {
	langs := Languages(languageHint, t.defLangs)
	logger := ctxhelper.LoggerOr(ctx, t.logger).WithField(log.FldLanguage, langs)

	// tesseract needs a real file to read from
	f, err := os.CreateTemp("", "bhajanbook-ocr-*")
	if err != nil {
		return "", errors.Wrap(err, "Extract: Failed to create temporary file")
	}
	defer os.Remove(f.Name())
	if _, err := io.Copy(f, image); err != nil {
		f.Close()
		return "", errors.Wrap(err, "Extract: Failed to store image")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "Extract: Failed to store image")
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, f.Name(), "stdout", "-l", langs)
	cmd.Stderr = &stderr
	logger.WithField(log.FldFile, f.Name()).Debug("Running tesseract")
	data, err := cmd.Output()
	if err != nil {
		logger.WithError(err).WithField("stderr", stderr.String()).Error("Could not execute tesseract")
		return "", errors.Wrapf(ErrExtractionFailed, "%s: %v", strings.TrimSpace(stderr.String()), err)
	}
	text := sanitize.Clean(string(data))
	if text == "" {
		return "", errors.Wrap(ErrExtractionFailed, "no text recognized")
	}
	return text, nil
}
