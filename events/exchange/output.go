package exchange

type ExchangeReceivedEvent struct {
	Bytes int `json:"bytes"`
}

func (e *ExchangeReceivedEvent) GetId() string {
	return "exchange.received"
}

type ExchangeTranscribedEvent struct {
	Transcript string `json:"transcript"`
}

func (e *ExchangeTranscribedEvent) GetId() string {
	return "exchange.transcribed"
}

type ExchangeLanguageDetectedEvent struct {
	Language string `json:"language"`
}

func (e *ExchangeLanguageDetectedEvent) GetId() string {
	return "exchange.language_detected"
}

type ExchangeNoReportEvent struct{}

func (e *ExchangeNoReportEvent) GetId() string {
	return "exchange.no_report"
}

type ExchangePromptBuiltEvent struct {
	Characters int `json:"characters"`
}

func (e *ExchangePromptBuiltEvent) GetId() string {
	return "exchange.prompt_built"
}

type ExchangeGeneratedEvent struct {
	Text string `json:"text"`
}

func (e *ExchangeGeneratedEvent) GetId() string {
	return "exchange.generated"
}

type ExchangeSynthesizedEvent struct {
	AudioID   string `json:"audio_id"`
	MediaType string `json:"media_type"`
}

func (e *ExchangeSynthesizedEvent) GetId() string {
	return "exchange.synthesized"
}

// ExchangeFailedEvent is emitted when a stage exits to the error terminal.
type ExchangeFailedEvent struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *ExchangeFailedEvent) GetId() string {
	return "exchange.failed"
}
