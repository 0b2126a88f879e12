package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"reportvoice/core"
	"reportvoice/events/ingest"
	"reportvoice/store"
	"reportvoice/utils/imagex"
)

const relayer = "IngestHandler"

// ITextExtractor runs OCR over a normalized PNG.
type ITextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// IngestHandler turns an uploaded report image into session-scoped report text.
type IngestHandler struct {
	extractor ITextExtractor
	store     store.ReportStore
	sink      core.EventSink
	config    IngestConfig
	logger    *core.Logger
}

func NewIngestHandler(extractor ITextExtractor, reports store.ReportStore, sink core.EventSink, config IngestConfig, logger *core.Logger) *IngestHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &IngestHandler{
		extractor: extractor,
		store:     reports,
		sink:      sink,
		config:    config,
		logger:    logger.With(map[string]interface{}{"handler": "ingest"}),
	}
}

// Ingest extracts the text of image and stores it under sessionID. An empty
// sessionID starts a new session. On any failure the stored report of the
// session is left untouched.
func (h *IngestHandler) Ingest(ctx context.Context, sessionID string, image []byte) core.IngestStatus {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	logger := core.LoggerFromContext(ctx, h.logger).With(map[string]interface{}{"session_id": sessionID})
	core.Emit(ctx, h.sink, sessionID, &ingest.IngestReceivedEvent{Bytes: len(image)}, relayer)

	report, err := h.run(ctx, sessionID, image)
	if err != nil {
		status := core.IngestStatus{
			Code:    statusCode(err),
			Message: core.UserMessage(err),
			Err:     err,
		}
		logger.Warn("ingestion failed", "status", status.Code, "error", err)
		core.Emit(ctx, h.sink, sessionID, &ingest.IngestFailedEvent{
			Kind:    string(core.KindOf(err)),
			Message: status.Message,
		}, relayer)
		return status
	}

	logger.Info("report stored", "characters", len(report.Text), "source", report.SourceType)
	core.Emit(ctx, h.sink, sessionID, &ingest.IngestStoredEvent{}, relayer)
	return core.IngestStatus{
		Code:      core.IngestSuccess,
		Message:   core.MsgIngestSuccess,
		SessionID: sessionID,
	}
}

func (h *IngestHandler) run(ctx context.Context, sessionID string, image []byte) (*core.Report, error) {
	if len(image) == 0 {
		return nil, core.ErrInvalidInput
	}

	normalized, err := imagex.Normalize(image, h.config.Image)
	if err != nil {
		return nil, err
	}
	core.Emit(ctx, h.sink, sessionID, &ingest.IngestNormalizedEvent{
		SourceFormat: normalized.SourceFormat,
		Width:        normalized.Width,
		Height:       normalized.Height,
	}, relayer)

	text, err := h.extractor.ExtractText(ctx, normalized.PNG)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrNoTextDetected
	}
	if h.config.TrimText {
		text = strings.TrimSpace(text)
	}
	core.Emit(ctx, h.sink, sessionID, &ingest.IngestExtractedEvent{Characters: len(text)}, relayer)

	report := &core.Report{
		SessionID:  sessionID,
		Text:       text,
		SourceType: normalized.SourceFormat,
	}
	if err := h.store.Put(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func statusCode(err error) core.IngestStatusCode {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return core.IngestInvalidInput
	case errors.Is(err, core.ErrNoTextDetected):
		return core.IngestNoTextDetected
	default:
		return core.IngestProcessingError
	}
}
