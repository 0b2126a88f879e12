package exchange

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"reportvoice/core"
	"reportvoice/events/exchange"
	"reportvoice/store"
	"reportvoice/utils/audio"
	"reportvoice/utils/text"
)

const relayer = "ExchangeHandler"

type ITranscriber interface {
	Transcribe(ctx context.Context, recording []byte) (core.Transcription, error)
}

type ILanguageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ISynthesizer speaks text in language. Languages it cannot speak must yield
// an error matching core.ErrUnsupportedLanguage.
type ISynthesizer interface {
	Synthesize(ctx context.Context, text string, language string) (*core.Speech, error)
}

// ExchangeHandler answers a spoken question about the report of a session.
type ExchangeHandler struct {
	transcriber ITranscriber
	detector    ILanguageDetector
	generator   IGenerator
	synthesizer ISynthesizer
	store       store.ReportStore
	sink        core.EventSink
	config      ExchangeConfig
	logger      *core.Logger
}

func NewExchangeHandler(
	transcriber ITranscriber,
	detector ILanguageDetector,
	generator IGenerator,
	synthesizer ISynthesizer,
	reports store.ReportStore,
	sink core.EventSink,
	config ExchangeConfig,
	logger *core.Logger,
) *ExchangeHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ExchangeHandler{
		transcriber: transcriber,
		detector:    detector,
		generator:   generator,
		synthesizer: synthesizer,
		store:       reports,
		sink:        sink,
		config:      config,
		logger:      logger.With(map[string]interface{}{"handler": "exchange"}),
	}
}

// exchangeRun carries one request through the stages.
type exchangeRun struct {
	h         *ExchangeHandler
	ctx       context.Context
	sessionID string
	logger    *core.Logger
	resp      *core.ExchangeResponse
}

func (r *exchangeRun) advance(stage core.Stage, event core.IEvent) {
	r.resp.Stage = stage
	r.logger.Debug("exchange stage", "stage", stage)
	core.Emit(r.ctx, r.h.sink, r.sessionID, event, relayer)
}

// Ask runs the exchange for one recorded question. Every failure is converted
// into a user-facing reply here; the response never carries audio unless
// Stage is core.StageSynthesized. The caller owns resp.Audio and must Release it.
func (h *ExchangeHandler) Ask(ctx context.Context, sessionID string, recording []byte) core.ExchangeResponse {
	resp := core.ExchangeResponse{}
	run := &exchangeRun{
		h:         h,
		ctx:       ctx,
		sessionID: sessionID,
		logger:    core.LoggerFromContext(ctx, h.logger).With(map[string]interface{}{"session_id": sessionID}),
		resp:      &resp,
	}
	run.advance(core.StageReceived, &exchange.ExchangeReceivedEvent{Bytes: len(recording)})

	err := run.execute(recording)
	if err == nil {
		run.logger.Info("exchange completed", "language", resp.Request.Language, "audio_id", resp.Audio.ID)
		return resp
	}

	failedAt := resp.Stage
	resp.Kind = core.KindOf(err)
	resp.Err = err
	resp.Audio = nil
	switch resp.Kind {
	case core.KindNoReportUploaded:
		resp.Stage = core.StageNoReport
		resp.Reply = core.MsgNoReport
		run.logger.Info("question asked before a report was uploaded")
		core.Emit(ctx, h.sink, sessionID, &exchange.ExchangeNoReportEvent{}, relayer)
		return resp
	case core.KindUnsupportedLanguage:
		// resp.Reply already holds the generated answer; only the audio is missing.
		resp.Stage = core.StageError
		run.logger.Warn("reply not synthesized", "language", resp.Request.Language, "error", err)
	case core.KindInvalidInput:
		resp.Stage = core.StageError
		resp.Reply = core.MsgInvalidAudio
	default:
		resp.Stage = core.StageError
		resp.Reply = core.UserMessage(err)
		run.logger.Warn("exchange failed", "stage", failedAt, "kind", resp.Kind, "error", err)
	}
	core.Emit(ctx, h.sink, sessionID, &exchange.ExchangeFailedEvent{
		Stage:   string(failedAt),
		Kind:    string(resp.Kind),
		Message: resp.Reply,
	}, relayer)
	return resp
}

func (r *exchangeRun) execute(recording []byte) error {
	h := r.h
	if len(recording) == 0 {
		return core.NewError(core.KindInvalidInput, "empty recording", nil)
	}
	if h.config.NormalizeAudio {
		normalized, err := audio.NormalizeWAV(recording)
		if err != nil {
			return fmt.Errorf("exchange: normalize audio: %w", err)
		}
		recording = normalized
	}

	transcription, err := h.transcriber.Transcribe(r.ctx, recording)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(transcription.Text)
	if question == "" {
		return core.ErrUnrecognized
	}
	r.resp.Request.Transcript = question
	r.advance(core.StageTranscribed, &exchange.ExchangeTranscribedEvent{Transcript: question})

	language, err := r.detectLanguage(question, transcription.Language)
	if err != nil {
		return err
	}
	r.resp.Request.Language = language
	r.advance(core.StageLanguageDetected, &exchange.ExchangeLanguageDetectedEvent{Language: language})

	report, err := h.store.Get(r.ctx, r.sessionID)
	if err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		return fmt.Errorf("exchange: load report: %w", err)
	}
	if !report.HasText() {
		return core.ErrNoReportUploaded
	}

	prompt := BuildPrompt(report.Text, question, language)
	r.advance(core.StagePromptBuilt, &exchange.ExchangePromptBuiltEvent{Characters: len(prompt.Text)})

	answer, err := h.generator.Generate(r.ctx, prompt.Text)
	if err != nil {
		return err
	}
	if strings.TrimSpace(answer) == "" {
		return core.ErrNoAnswer
	}
	r.resp.Reply = answer
	r.advance(core.StageGenerated, &exchange.ExchangeGeneratedEvent{Text: answer})

	spoken := text.NormalizeForSpeech(answer)
	if spoken == "" {
		spoken = answer
	}
	speech, err := h.synthesizer.Synthesize(r.ctx, spoken, language)
	if err != nil {
		return err
	}
	artifact, err := h.writeArtifact(speech, language)
	if err != nil {
		return err
	}
	r.resp.Audio = artifact
	r.advance(core.StageSynthesized, &exchange.ExchangeSynthesizedEvent{AudioID: artifact.ID, MediaType: artifact.MediaType})
	return nil
}

// detectLanguage prefers the detector, then the transcriber's own guess, then the configured fallback.
func (r *exchangeRun) detectLanguage(question, hint string) (string, error) {
	language, err := r.h.detector.Detect(r.ctx, question)
	if err == nil && language != "" {
		return language, nil
	}
	if hint != "" {
		r.logger.Debug("language detector failed, using transcriber hint", "hint", hint, "error", err)
		return hint, nil
	}
	if r.h.config.FallbackLanguage != "" {
		r.logger.Debug("language detector failed, using fallback", "fallback", r.h.config.FallbackLanguage, "error", err)
		return r.h.config.FallbackLanguage, nil
	}
	if err == nil {
		err = errors.New("empty language code")
	}
	return "", fmt.Errorf("exchange: detect language: %w", err)
}

// writeArtifact stores speech in a fresh temporary file.
func (h *ExchangeHandler) writeArtifact(speech *core.Speech, language string) (*core.AudioArtifact, error) {
	if speech == nil || len(speech.Data) == 0 {
		return nil, errors.New("exchange: synthesizer returned no audio")
	}
	f, err := os.CreateTemp(h.config.ArtifactDir, "reply-*"+extensionFor(speech.MediaType))
	if err != nil {
		return nil, fmt.Errorf("exchange: create audio file: %w", err)
	}
	if _, err := f.Write(speech.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("exchange: write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("exchange: close audio file: %w", err)
	}
	return &core.AudioArtifact{
		ID:        uuid.New().String(),
		Path:      f.Name(),
		MediaType: speech.MediaType,
		Language:  language,
	}, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case audio.MediaTypeMP3:
		return ".mp3"
	case audio.MediaTypeWAV:
		return ".wav"
	case audio.MediaTypeOGG:
		return ".ogg"
	case audio.MediaTypeFLAC:
		return ".flac"
	default:
		return ".bin"
	}
}
