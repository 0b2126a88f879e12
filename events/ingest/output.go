package ingest

type IngestReceivedEvent struct {
	Bytes int `json:"bytes"`
}

func (e *IngestReceivedEvent) GetId() string {
	return "ingest.received"
}

type IngestNormalizedEvent struct {
	SourceFormat string `json:"source_format"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

func (e *IngestNormalizedEvent) GetId() string {
	return "ingest.normalized"
}

type IngestExtractedEvent struct {
	Characters int `json:"characters"`
}

func (e *IngestExtractedEvent) GetId() string {
	return "ingest.extracted"
}

// IngestStoredEvent marks that the session's report text was overwritten.
type IngestStoredEvent struct{}

func (e *IngestStoredEvent) GetId() string {
	return "ingest.stored"
}

type IngestFailedEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *IngestFailedEvent) GetId() string {
	return "ingest.failed"
}
