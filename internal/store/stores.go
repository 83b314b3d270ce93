package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrNotCancellable is returned when an order's status forbids cancellation.
var ErrNotCancellable = errors.New("store: order not cancellable")

// OwnerStore manages storefront owners and their encrypted tokens.
type OwnerStore interface {
	// ActiveOwner returns the owner currently bound to the bot.
	ActiveOwner(ctx context.Context) (*Owner, error)
	// UpsertOwner inserts or updates an owner by name, returning its id.
	UpsertOwner(ctx context.Context, owner *Owner) (int64, error)
	// Activate marks an owner active and stamps ActivatedAt with now.
	Activate(ctx context.Context, id int64) error
	// LastActivation reports when the conversation's owner last enabled
	// the integration; ok is false when no active owner exists.
	LastActivation(ctx context.Context, conversationID string) (time.Time, bool)
}

// CatalogStore resolves products.
type CatalogStore interface {
	// FindProductByName matches a product by case-insensitive name.
	// Returns ErrNotFound when absent.
	FindProductByName(ctx context.Context, ownerID int64, name string) (*Product, error)
	// ListProducts returns the owner's active products.
	ListProducts(ctx context.Context, ownerID int64) ([]*Product, error)
	// AddProduct inserts a product, returning its id.
	AddProduct(ctx context.Context, p *Product) (int64, error)
}

// OrderStore persists and queries orders.
type OrderStore interface {
	// CreateOrder persists one order with one line per item;
	// total = Σ(price×quantity).
	CreateOrder(ctx context.Context, in NewOrder) (*Order, error)
	// OrdersForConversation returns the most recent orders, newest first.
	OrdersForConversation(ctx context.Context, conversationID string, limit int) ([]*Order, error)
	// GetOrder loads one order with its lines.
	GetOrder(ctx context.Context, id int64) (*Order, error)
	// CancelOrder cancels an order only while its status is NEW or
	// PENDING; otherwise ErrNotCancellable and the row is unchanged.
	CancelOrder(ctx context.Context, id int64) (*Order, error)
}

// MessageStore is the inbound message log.
type MessageStore interface {
	// RecordInbound persists one admitted update. Idempotent on UpdateID:
	// replaying the same update id never duplicates a row.
	RecordInbound(ctx context.Context, msg InboundMessage) error
	// RecentMessages returns the conversation's latest messages, oldest
	// first, for prompt context.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]*InboundMessage, error)
	// MarkProcessed flags all of the conversation's messages as handled.
	MarkProcessed(ctx context.Context, conversationID string) error
	// PruneProcessed deletes processed messages older than the cutoff and
	// returns how many rows went away.
	PruneProcessed(ctx context.Context, before time.Time) (int64, error)
}

// Stores aggregates all persistence interfaces.
type Stores struct {
	Owners   OwnerStore
	Catalog  CatalogStore
	Orders   OrderStore
	Messages MessageStore
}
