package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductCreatedEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	Carrier   map[string]string `json:"carrier,omitempty"`
	ProductID int64             `json:"product_id"`
	Name      string            `json:"name"`
	Price     decimal.Decimal   `json:"price"`
	Category  string            `json:"category"`
	CreatedAt time.Time         `json:"created_at"`
}

func (e ProductCreatedEvent) Subject() string {
	return messaging.ProductCreatedSubject
}

func (e ProductCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e ProductCreatedEvent) ID() string {
	return e.EventID.String()
}

// CategoryDiscountedEvent is emitted once per committed discount, listing every repriced product.
type CategoryDiscountedEvent struct {
	EventID            uuid.UUID         `json:"event_id"`
	Carrier            map[string]string `json:"carrier,omitempty"`
	Category           string            `json:"category"`
	DiscountPercentage decimal.Decimal   `json:"discount_percentage"`
	ProductIDs         []int64           `json:"product_ids"`
	AppliedAt          time.Time         `json:"applied_at"`
}

func (e CategoryDiscountedEvent) Subject() string {
	return messaging.CategoryDiscountedSubject
}

func (e CategoryDiscountedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e CategoryDiscountedEvent) ID() string {
	return e.EventID.String()
}
