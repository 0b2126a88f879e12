// Package store keeps report text per session so that concurrent users never
// see each other's reports.
package store

import (
	"context"

	"reportvoice/core"
)

// ReportStore persists session-scoped reports. Get returns core.ErrSessionNotFound
// for unknown sessions.
type ReportStore interface {
	Put(ctx context.Context, report *core.Report) error
	Get(ctx context.Context, sessionID string) (*core.Report, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
