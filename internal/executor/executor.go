// Package executor turns extracted intents into business actions:
// persisting orders, listing them, cancelling them, and shaping the
// customer-facing reply for each outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/nextlevelbuilder/shopclaw/internal/intent"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// Result is the reply produced by executing an intent.
type Result struct {
	Text   string
	Images []string
}

// Config tunes reply formatting.
type Config struct {
	Currency        string
	OrdersPageSize  int
	DefaultLanguage string
}

// Executor dispatches intents against the order store.
type Executor struct {
	orders  store.OrderStore
	catalog store.CatalogStore
	cfg     Config
	log     *slog.Logger
}

// New builds an executor. A nil catalog disables product id verification
// on incoming drafts. Zero config fields fall back to USD, a page of 5
// and English.
func New(orders store.OrderStore, catalog store.CatalogStore, cfg Config) *Executor {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.OrdersPageSize <= 0 {
		cfg.OrdersPageSize = 5
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return &Executor{
		orders:  orders,
		catalog: catalog,
		cfg:     cfg,
		log:     slog.Default().With("component", "executor"),
	}
}

// Execute runs the intent for the owner's conversation and returns the
// customer reply. userText is the merged customer message, used to
// resolve references like "cancel order #12". Business refusals (order
// already shipped, nothing to cancel) come back as replies, not errors;
// the error return is reserved for infrastructure failures.
func (e *Executor) Execute(ctx context.Context, owner *store.Owner, conversationID, userText string, in intent.Intent) (Result, error) {
	loc := localeFor(owner.Language, e.cfg.DefaultLanguage)

	switch in.Kind {
	case intent.KindCreateOrder:
		return e.createOrder(ctx, owner, conversationID, loc, in)
	case intent.KindFetchOrders:
		return e.fetchOrders(ctx, conversationID, loc, in)
	case intent.KindCancelOrder:
		return e.cancelOrder(ctx, conversationID, userText, loc, in)
	case intent.KindAskForInfo:
		return askForInfo(loc, in), nil
	default:
		return Result{Text: in.Reply.Text, Images: in.Reply.Images}, nil
	}
}

func (e *Executor) createOrder(ctx context.Context, owner *store.Owner, conversationID string, loc locale, in intent.Intent) (Result, error) {
	draft := in.Order
	if draft == nil || len(draft.Items) == 0 {
		// A purchase with no recoverable items becomes a clarification,
		// never a silent drop.
		return Result{Text: loc.askItems}, nil
	}

	newOrder := store.NewOrder{
		OwnerID:        owner.ID,
		ConversationID: conversationID,
		CustomerName:   draft.CustomerName,
		Contact:        draft.Contact,
		Notes:          draft.Notes,
	}
	known := e.knownProductIDs(ctx, owner.ID)
	for _, it := range draft.Items {
		switch {
		case it.ProductID == 0:
			e.log.Warn("order item without catalog match",
				"conversation", conversationID, "name", it.Name)
		case known != nil && !known[it.ProductID]:
			// The model invented an id. The order still goes through on
			// name and price so the sale is not lost, but the owner needs
			// the trail.
			e.log.Warn("order item references unknown product",
				"conversation", conversationID, "product_id", it.ProductID, "name", it.Name)
		}
		newOrder.Items = append(newOrder.Items, store.NewOrderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}

	order, err := e.orders.CreateOrder(ctx, newOrder)
	if err != nil {
		return Result{}, fmt.Errorf("create order: %w", err)
	}
	e.log.Info("order created",
		"conversation", conversationID, "order", order.Number, "total", order.Total)

	text := loc.orderConfirmed(order, e.cfg.Currency)
	if in.Reply.Text != "" {
		text = in.Reply.Text + "\n\n" + text
	}
	return Result{Text: text, Images: in.Reply.Images}, nil
}

// knownProductIDs snapshots the owner's catalog ids. A nil map means
// verification is unavailable and item ids pass through unchecked.
func (e *Executor) knownProductIDs(ctx context.Context, ownerID int64) map[int64]bool {
	if e.catalog == nil {
		return nil
	}
	products, err := e.catalog.ListProducts(ctx, ownerID)
	if err != nil {
		e.log.Warn("catalog lookup failed, skipping product id check", "error", err)
		return nil
	}
	known := make(map[int64]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}
	return known
}

func (e *Executor) fetchOrders(ctx context.Context, conversationID string, loc locale, in intent.Intent) (Result, error) {
	orders, err := e.orders.OrdersForConversation(ctx, conversationID, e.cfg.OrdersPageSize)
	if err != nil {
		return Result{}, fmt.Errorf("fetch orders: %w", err)
	}
	if len(orders) == 0 {
		return Result{Text: loc.noOrders}, nil
	}
	text := loc.orderList(orders, e.cfg.Currency)
	if in.Reply.Text != "" {
		text = in.Reply.Text + "\n\n" + text
	}
	return Result{Text: text}, nil
}

var orderRefRe = regexp.MustCompile(`(?i)order\s*#\s*(\d+)|#(\d+)`)

// resolveOrderRef pulls an order id from the intent payload, falling
// back to the last "order #N" style reference in the customer text.
func resolveOrderRef(in intent.Intent, userText string) int64 {
	if in.Cancel != nil && in.Cancel.OrderID > 0 {
		return in.Cancel.OrderID
	}
	matches := orderRefRe.FindAllStringSubmatch(userText, -1)
	if len(matches) == 0 {
		return 0
	}
	last := matches[len(matches)-1]
	for _, g := range last[1:] {
		if g != "" {
			if id, err := strconv.ParseInt(g, 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}

func (e *Executor) cancelOrder(ctx context.Context, conversationID, userText string, loc locale, in intent.Intent) (Result, error) {
	id := resolveOrderRef(in, userText)
	if id == 0 {
		return Result{Text: loc.whichOrder}, nil
	}

	order, err := e.orders.CancelOrder(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Result{Text: loc.orderNotFound(id)}, nil
	case errors.Is(err, store.ErrNotCancellable):
		e.log.Info("cancel refused",
			"conversation", conversationID, "order", id, "status", order.Status)
		return Result{Text: loc.cancelRefused(order)}, nil
	case err != nil:
		return Result{}, fmt.Errorf("cancel order: %w", err)
	}

	e.log.Info("order cancelled", "conversation", conversationID, "order", id)
	return Result{Text: loc.orderCancelled(order)}, nil
}

func askForInfo(loc locale, in intent.Intent) Result {
	if in.Ask != nil && in.Ask.Message != "" {
		return Result{Text: in.Ask.Message}
	}
	if in.Reply.Text != "" {
		return Result{Text: in.Reply.Text}
	}
	missing := []string{"contact"}
	if in.Ask != nil && len(in.Ask.Missing) > 0 {
		missing = in.Ask.Missing
	}
	return Result{Text: loc.askMissing(missing)}
}
