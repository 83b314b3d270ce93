// Package store defines the persistence interfaces and models for the
// catalog/order/owner collaborators and the inbound message log.
package store

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Cancellable reports whether an order in this status may still be
// cancelled by the customer.
func (s OrderStatus) Cancellable() bool {
	return s == StatusNew || s == StatusPending
}

// Owner is a storefront owner: the merchant the bot sells for. The
// platform token is stored encrypted; ActivatedAt tracks when the owner
// last enabled the integration, which gates replayed history.
type Owner struct {
	ID             int64
	Name           string
	Language       string // reply locale, e.g. "en", "es", "vi"
	EncryptedToken string
	Active         bool
	ActivatedAt    time.Time
	UpdatedAt      time.Time
}

// Product is one catalog entry.
type Product struct {
	ID       int64
	OwnerID  int64
	Name     string
	Price    float64
	Currency string
	PhotoURL string
	Active   bool
}

// Order is a persisted customer order with its lines.
type Order struct {
	ID             int64
	Number         string // public order number (uuid)
	OwnerID        int64
	ConversationID string
	CustomerName   string
	Contact        string
	Notes          string
	Status         OrderStatus
	Total          float64
	Items          []OrderLine
	CreatedAt      time.Time
}

// OrderLine is one item row of an order. Name and UnitPrice are snapshots
// taken at order time so later catalog edits do not rewrite history.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64 // 0 when the model produced an unresolvable item
	Name      string
	Quantity  int
	UnitPrice float64
}

// NewOrder is the input for creating an order from a purchase intent.
type NewOrder struct {
	OwnerID        int64
	ConversationID string
	CustomerName   string
	Contact        string
	Notes          string
	Items          []NewOrderLine
}

// NewOrderLine is one line of a NewOrder.
type NewOrderLine struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice float64
}

// InboundMessage is the persisted trace of one admitted platform update.
type InboundMessage struct {
	ID             int64
	UpdateID       int64
	ConversationID string
	SenderID       string
	Text           string
	Timestamp      time.Time
	Processed      bool
	CreatedAt      time.Time
}
