package server

import (
	"context"
	"sync"
	"time"

	"reportvoice/core"
)

type artifactEntry struct {
	artifact *core.AudioArtifact
	expires  time.Time
}

// ArtifactRegistry holds reply audio until it is downloaded once or expires.
type ArtifactRegistry struct {
	mu     sync.Mutex
	items  map[string]artifactEntry
	ttl    time.Duration
	now    func() time.Time
	logger *core.Logger
}

// NewArtifactRegistry creates a registry whose entries live for ttl.
func NewArtifactRegistry(ttl time.Duration, logger *core.Logger) *ArtifactRegistry {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ArtifactRegistry{
		items:  make(map[string]artifactEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(map[string]interface{}{"component": "artifacts"}),
	}
}

// Register makes artifact downloadable by its ID.
func (r *ArtifactRegistry) Register(artifact *core.AudioArtifact) {
	if artifact == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[artifact.ID] = artifactEntry{artifact: artifact, expires: r.now().Add(r.ttl)}
}

// Take removes and returns the artifact. The caller must Release it after delivery.
func (r *ArtifactRegistry) Take(id string) (*core.AudioArtifact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[id]
	if !ok {
		return nil, false
	}
	delete(r.items, id)
	return entry.artifact, true
}

// Peek returns the artifact without claiming it.
func (r *ArtifactRegistry) Peek(id string) (*core.AudioArtifact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[id]
	return entry.artifact, ok
}

// Len returns the number of pending artifacts.
func (r *ArtifactRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep releases every expired artifact and returns how many were removed.
func (r *ArtifactRegistry) Sweep() int {
	now := r.now()
	var expired []*core.AudioArtifact
	r.mu.Lock()
	for id, entry := range r.items {
		if now.After(entry.expires) {
			expired = append(expired, entry.artifact)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, a := range expired {
		if err := a.Release(); err != nil {
			r.logger.Warn("failed to release expired artifact", "audio_id", a.ID, "error", err)
		}
	}
	if len(expired) > 0 {
		r.logger.Debug("expired artifacts released", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is done, then releases everything left.
func (r *ArtifactRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			r.Close()
			return
		}
	}
}

// Close releases all pending artifacts.
func (r *ArtifactRegistry) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]artifactEntry)
	r.mu.Unlock()
	for _, entry := range items {
		if err := entry.artifact.Release(); err != nil {
			r.logger.Warn("failed to release pending artifact", "audio_id", entry.artifact.ID, "error", err)
		}
	}
}
