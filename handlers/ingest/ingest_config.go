package ingest

import "reportvoice/utils/imagex"

type IngestConfig struct {
	Image imagex.Options `json:"image" yaml:"image"` // Normalization applied before OCR.
	// TrimText strips surrounding whitespace from the stored report text. The
	// emptiness check always ignores whitespace.
	TrimText bool `json:"trim_text" yaml:"trim_text"`
}

// DefaultConfig returns an IngestConfig with sensible defaults.
func DefaultConfig() IngestConfig {
	return IngestConfig{
		Image: imagex.Options{MaxDimension: 4000},
	}
}
