// Package ocr extracts report text from images with the Tesseract engine.
//
// Tesseract and the language data for every configured language must be
// installed on the host (e.g. apt-get install tesseract-ocr tesseract-ocr-eng).
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"reportvoice/core"
)

// TesseractConfig holds configuration for the Tesseract extractor.
type TesseractConfig struct {
	// Languages are Tesseract language codes, e.g. "eng", "deu". Defaults to eng.
	Languages []string `json:"languages" yaml:"languages"`
	// PageSegMode overrides Tesseract's page segmentation mode when non-zero.
	PageSegMode int `json:"page_seg_mode,omitempty" yaml:"page_seg_mode,omitempty"`
	// Whitelist restricts recognized characters when set.
	Whitelist string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
}

// DefaultConfig returns a TesseractConfig with sensible defaults
func DefaultConfig() TesseractConfig {
	return TesseractConfig{
		Languages: []string{"eng"},
	}
}

// TesseractOCR implements the ingestion TextExtractor with gosseract.
type TesseractOCR struct {
	config TesseractConfig
	logger *core.Logger
}

// NewTesseractOCR creates a new extractor. A fresh Tesseract client is used per
// call, so one instance may serve concurrent requests.
func NewTesseractOCR(config TesseractConfig, logger *core.Logger) *TesseractOCR {
	if len(config.Languages) == 0 {
		config.Languages = DefaultConfig().Languages
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TesseractOCR{
		config: config,
		logger: logger.With(map[string]interface{}{"component": "tesseract"}),
	}
}

// ExtractText runs OCR over an encoded image and returns the raw recognized text.
func (t *TesseractOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("tesseract: empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.config.Languages...); err != nil {
		return "", fmt.Errorf("tesseract: set language: %w", err)
	}
	if t.config.PageSegMode != 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(t.config.PageSegMode)); err != nil {
			return "", fmt.Errorf("tesseract: set page seg mode: %w", err)
		}
	}
	if t.config.Whitelist != "" {
		if err := client.SetWhitelist(t.config.Whitelist); err != nil {
			return "", fmt.Errorf("tesseract: set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: ocr failed: %w", err)
	}
	t.logger.Debug("ocr completed", "characters", len(text), "languages", t.config.Languages)
	return text, nil
}
