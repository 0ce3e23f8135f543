package sink

import (
	"context"

	"harvester/pkg/models"
)

// Sink is an append-only destination for normalized records.
// A nil error from Append means the records are durable.
type Sink interface {
	Append(ctx context.Context, records []models.Record) error
	Close() error
}
