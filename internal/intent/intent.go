// Package intent turns free-text model output into exactly one typed
// business intent. Model output is inherently unreliable: structured
// payloads arrive truncated, fenced, or misformatted, so extraction never
// fails; it degrades to the most conservative intent and logs.
package intent

import "context"

// Kind identifies which Intent variant is populated.
type Kind string

const (
	KindPlainReply  Kind = "plain_reply"
	KindCreateOrder Kind = "create_order"
	KindFetchOrders Kind = "fetch_orders"
	KindCancelOrder Kind = "cancel_order"
	KindAskForInfo  Kind = "ask_for_info"
)

// Intent is a tagged union; exactly one variant is populated, selected by
// Kind. Reply carries the user-visible text for every variant.
type Intent struct {
	Kind   Kind
	Reply  PlainReply
	Order  *OrderDraft
	Cancel *CancelOrder
	Ask    *AskForInfo
}

// PlainReply is the text (and optional photo URLs) shown to the user.
type PlainReply struct {
	Text   string
	Images []string
}

// OrderDraft is a purchase intent extracted from model output.
type OrderDraft struct {
	CustomerName string      `json:"customerName"`
	Contact      string      `json:"contact"`
	Items        []OrderItem `json:"items"`
	Notes        string      `json:"notes"`
}

// OrderItem is a single order line.
type OrderItem struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CancelOrder targets an order by id; zero means "resolve from free text".
type CancelOrder struct {
	OrderID int64 `json:"orderId"`
}

// AskForInfo relays the model's clarification request.
type AskForInfo struct {
	Missing []string `json:"missingInfo"`
	Message string   `json:"message"`
}

// ProductRef is a catalog product resolved by name for the legacy
// confirmation branch.
type ProductRef struct {
	ID       int64
	Name     string
	Price    float64
	Currency string
}

// ProductLookup resolves product names against the catalog.
type ProductLookup interface {
	FindProductByName(ctx context.Context, name string) (*ProductRef, bool)
}

func plainReply(text string, images ...string) Intent {
	return Intent{Kind: KindPlainReply, Reply: PlainReply{Text: text, Images: images}}
}
