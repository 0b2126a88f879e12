package factories

import (
	"context"
	"errors"

	"reportvoice/core"
	"reportvoice/server"
	"reportvoice/store"
	"reportvoice/transports/websocket"
)

// Pipeline owns everything one process needs to serve reports: the report
// store, the event hub and both pipelines.
type Pipeline struct {
	settings SettingsConfig
	store    store.ReportStore
	hub      *websocket.EventHub
	handlers *SessionHandlers
	logger   *core.Logger
}

// NewPipeline builds the store and pipelines described by settings.
func NewPipeline(settings SettingsConfig, keys APIKeys, logger *core.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	logger = logger.With(map[string]interface{}{"component": "pipeline"})

	settings.Session.InjectAPIKeys(keys)

	reports, err := BuildReportStore(settings.Store)
	if err != nil {
		return nil, err
	}

	hub := settings.Transport.BuildEventHub(logger)
	var sink core.EventSink
	if hub != nil {
		sink = hub
	}

	handlers, err := settings.Session.BuildHandlers(reports, sink, logger)
	if err != nil {
		reports.Close()
		return nil, err
	}

	return &Pipeline{
		settings: settings,
		store:    reports,
		hub:      hub,
		handlers: handlers,
		logger:   logger,
	}, nil
}

// Handlers returns the ingestion and exchange pipelines.
func (p *Pipeline) Handlers() *SessionHandlers {
	return p.handlers
}

// Store returns the report store.
func (p *Pipeline) Store() store.ReportStore {
	return p.store
}

// Serve runs the HTTP surface until ctx is cancelled.
func (p *Pipeline) Serve(ctx context.Context) error {
	if p.handlers == nil {
		return errors.New("pipeline: handlers not built")
	}
	srv := server.NewServer(p.settings.Transport.HTTP, p.handlers.Ingest, p.handlers.Exchange, p.hub, p.logger)
	p.logger.Info("pipeline serving")
	return srv.Run(ctx)
}

// Close releases the report store.
func (p *Pipeline) Close() error {
	if p.hub != nil {
		p.hub.Close()
	}
	return p.store.Close()
}
