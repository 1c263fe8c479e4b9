package messaging

import (
	"context"
	"log/slog"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct {
	Logger *slog.Logger
}

func (p NoopPublisher) Publish(ctx context.Context, event Event) error {
	if p.Logger != nil {
		p.Logger.DebugContext(ctx, "Event dropped, publishing disabled", "subject", event.Subject())
	}
	return nil
}

// Identified is implemented by events that carry a unique id used for broker side deduplication.
type Identified interface {
	ID() string
}

const (
	CatalogStream             = "CATALOG"
	CatalogSubjects           = "catalog.>"
	ProductCreatedSubject     = "catalog.product.created"
	CategoryDiscountedSubject = "catalog.category.discounted"
)
