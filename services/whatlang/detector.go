// Package whatlang detects the language of a transcript with whatlanggo.
package whatlang

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"

	"reportvoice/core"
)

// DetectorConfig holds configuration for language detection
type DetectorConfig struct {
	// MinConfidence rejects detections below this score; 0 accepts any.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	// Blacklist drops ISO 639-1 or 639-3 codes that short questions are often misread as.
	Blacklist []string `json:"blacklist" yaml:"blacklist"`
}

// DefaultConfig returns a DetectorConfig with sensible defaults
func DefaultConfig() DetectorConfig {
	return DetectorConfig{}
}

// ErrUndetermined is returned when no language can be identified.
var ErrUndetermined = errors.New("whatlang: language could not be determined")

// Detector implements the exchange LanguageDetector.
type Detector struct {
	config    DetectorConfig
	blacklist map[whatlanggo.Lang]bool
	logger    *core.Logger
}

// NewDetector creates a detector.
func NewDetector(config DetectorConfig, logger *core.Logger) *Detector {
	if logger == nil {
		logger = core.GetLogger()
	}
	blacklist := make(map[whatlanggo.Lang]bool)
	for _, code := range config.Blacklist {
		code = strings.ToLower(strings.TrimSpace(code))
		for lang := range whatlanggo.Langs {
			if lang.Iso6393() == code || lang.Iso6391() == code {
				blacklist[lang] = true
			}
		}
	}
	return &Detector{
		config:    config,
		blacklist: blacklist,
		logger:    logger.With(map[string]interface{}{"component": "whatlang"}),
	}
}

// Detect returns the ISO 639-1 code of text.
func (d *Detector) Detect(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}

	var info whatlanggo.Info
	if len(d.blacklist) > 0 {
		info = whatlanggo.DetectWithOptions(text, whatlanggo.Options{Blacklist: d.blacklist})
	} else {
		info = whatlanggo.Detect(text)
	}
	if info.Lang < 0 {
		return "", ErrUndetermined
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", fmt.Errorf("%w: %s has no ISO 639-1 code", ErrUndetermined, info.Lang.String())
	}
	if d.config.MinConfidence > 0 && info.Confidence < d.config.MinConfidence {
		return "", fmt.Errorf("%w: confidence %.2f below %.2f", ErrUndetermined, info.Confidence, d.config.MinConfidence)
	}

	d.logger.Debug("language detected", "language", code, "confidence", info.Confidence)
	return code, nil
}
