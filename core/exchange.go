package core

import (
	"fmt"
	"os"
	"sync"
)

// Stage is a state of the question-answer exchange. Every request starts at
// StageReceived and stops at exactly one terminal stage.
type Stage string

const (
	StageReceived         Stage = "received"
	StageTranscribed      Stage = "transcribed"
	StageLanguageDetected Stage = "language_detected"
	StageNoReport         Stage = "no_report"
	StagePromptBuilt      Stage = "prompt_built"
	StageGenerated        Stage = "generated"
	StageSynthesized      Stage = "synthesized"
	StageError            Stage = "error"
)

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StageNoReport || s == StageSynthesized || s == StageError
}

// ExchangeRequest is a transcribed question with its detected language.
type ExchangeRequest struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

// ExchangePrompt is the full text submitted to the generation API.
type ExchangePrompt struct {
	Text     string
	Language string
}

// ExchangeResponse is the result of one exchange. Audio is nil unless Stage is StageSynthesized.
type ExchangeResponse struct {
	Reply   string
	Audio   *AudioArtifact
	Stage   Stage
	Kind    Kind
	Request ExchangeRequest
	Err     error
}

// AudioArtifact is a synthesized reply on disk. It lives until Release is called.
type AudioArtifact struct {
	ID        string
	Path      string
	MediaType string
	Language  string

	once sync.Once
}

// Release removes the backing file. Safe to call more than once.
func (a *AudioArtifact) Release() error {
	if a == nil {
		return nil
	}
	var err error
	a.once.Do(func() {
		if rmErr := os.Remove(a.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = fmt.Errorf("audio artifact: remove %q: %w", a.Path, rmErr)
		}
	})
	return err
}

// Transcription is the output of a speech-to-text collaborator. Language is
// the collaborator's own guess and may be empty.
type Transcription struct {
	Text     string
	Language string
}

// Speech is synthesized audio returned by a text-to-speech collaborator.
type Speech struct {
	Data      []byte
	MediaType string
}
