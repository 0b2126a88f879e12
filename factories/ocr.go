package factories

import (
	"errors"

	"reportvoice/core"
	"reportvoice/handlers/ingest"
	"reportvoice/services/tesseract/ocr"
)

// OCRFactoryConfig holds provider-specific configs for text extraction.
// Set exactly one provider config; the rest should be left nil.
type OCRFactoryConfig struct {
	TesseractConfig *ocr.TesseractConfig `json:"tesseract,omitempty" yaml:"tesseract,omitempty"`
}

// BuildTextExtractor constructs an ITextExtractor from the given factory config.
func BuildTextExtractor(config OCRFactoryConfig, logger *core.Logger) (ingest.ITextExtractor, error) {
	if config.TesseractConfig != nil {
		return ocr.NewTesseractOCR(*config.TesseractConfig, logger), nil
	}
	return nil, errors.New("OCRFactoryConfig: no provider config specified")
}
