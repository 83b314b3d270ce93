package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/shopclaw/internal/intent"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// fakeOrders is an in-memory store.OrderStore.
type fakeOrders struct {
	orders  map[int64]*store.Order
	nextID  int64
	created []store.NewOrder
	failOn  error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[int64]*store.Order{}, nextID: 1}
}

func (f *fakeOrders) CreateOrder(_ context.Context, in store.NewOrder) (*store.Order, error) {
	if f.failOn != nil {
		return nil, f.failOn
	}
	f.created = append(f.created, in)
	total := 0.0
	o := &store.Order{
		ID:             f.nextID,
		Number:         "ord-test",
		OwnerID:        in.OwnerID,
		ConversationID: in.ConversationID,
		Status:         store.StatusNew,
	}
	for _, it := range in.Items {
		total += it.UnitPrice * float64(it.Quantity)
		o.Items = append(o.Items, store.OrderLine{
			OrderID: o.ID, ProductID: it.ProductID, Name: it.Name,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice,
		})
	}
	o.Total = total
	f.orders[o.ID] = o
	f.nextID++
	return o, nil
}

func (f *fakeOrders) OrdersForConversation(_ context.Context, conversationID string, limit int) ([]*store.Order, error) {
	if f.failOn != nil {
		return nil, f.failOn
	}
	var out []*store.Order
	for id := f.nextID - 1; id >= 1 && len(out) < limit; id-- {
		if o, ok := f.orders[id]; ok && o.ConversationID == conversationID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (*store.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, id int64) (*store.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !o.Status.Cancellable() {
		return o, store.ErrNotCancellable
	}
	o.Status = store.StatusCancelled
	return o, nil
}

func testOwner() *store.Owner {
	return &store.Owner{ID: 1, Name: "demo", Language: "en"}
}

// fakeCatalog serves a fixed product list for id verification.
type fakeCatalog struct {
	products []*store.Product
}

func (f *fakeCatalog) FindProductByName(_ context.Context, _ int64, name string) (*store.Product, error) {
	for _, p := range f.products {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCatalog) ListProducts(context.Context, int64) ([]*store.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) AddProduct(context.Context, *store.Product) (int64, error) { return 0, nil }

func newTestExecutor(f *fakeOrders) *Executor {
	catalog := &fakeCatalog{products: []*store.Product{
		{ID: 11, OwnerID: 1, Name: "Phone X", Price: 299, Currency: "USD", Active: true},
	}}
	return New(f, catalog, Config{Currency: "USD", OrdersPageSize: 5, DefaultLanguage: "en"})
}

func TestExecute_PlainReplyPassthrough(t *testing.T) {
	e := newTestExecutor(newFakeOrders())
	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "hi",
		intent.Intent{Kind: intent.KindPlainReply, Reply: intent.PlainReply{
			Text: "We open at 9am", Images: []string{"https://x/img.jpg"},
		}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "We open at 9am" || len(res.Images) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestExecute_CreateOrderPersistsThenConfirms(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "confirm",
		intent.Intent{
			Kind:  intent.KindCreateOrder,
			Reply: intent.PlainReply{Text: "Great choice!"},
			Order: &intent.OrderDraft{
				CustomerName: "Ana",
				Items: []intent.OrderItem{
					{ProductID: 11, Name: "Phone X", Quantity: 2, Price: 299},
				},
			},
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.created) != 1 {
		t.Fatalf("orders persisted = %d, want 1", len(f.created))
	}
	if !strings.Contains(res.Text, "Great choice!") {
		t.Errorf("visible text dropped: %q", res.Text)
	}
	if !strings.Contains(res.Text, "ord-test") || !strings.Contains(res.Text, "598.00") {
		t.Errorf("confirmation missing number or total: %q", res.Text)
	}
}

func TestExecute_CreateOrderUnresolvedItemStillPersists(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)

	_, err := e.Execute(context.Background(), testOwner(), "chat-1", "",
		intent.Intent{
			Kind: intent.KindCreateOrder,
			Order: &intent.OrderDraft{Items: []intent.OrderItem{
				{ProductID: 0, Name: "mystery gadget", Quantity: 1, Price: 0},
			}},
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.created) != 1 {
		t.Fatal("order with unresolved item was dropped")
	}
	if f.created[0].Items[0].ProductID != 0 {
		t.Error("unresolved item should keep zero product id")
	}
}

func TestExecute_CreateOrderUnknownProductIDWarnsAndPersists(t *testing.T) {
	var logBuf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuf, nil)))
	defer slog.SetDefault(prev)

	f := newFakeOrders()
	e := newTestExecutor(f)

	_, err := e.Execute(context.Background(), testOwner(), "chat-1", "",
		intent.Intent{
			Kind: intent.KindCreateOrder,
			Order: &intent.OrderDraft{Items: []intent.OrderItem{
				{ProductID: 99, Name: "Phone X", Quantity: 1, Price: 299},
			}},
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.created) != 1 {
		t.Fatal("order with unverifiable item was dropped")
	}
	if f.created[0].Items[0].ProductID != 99 {
		t.Error("item product id should persist as given")
	}
	out := logBuf.String()
	if !strings.Contains(out, "unknown product") || !strings.Contains(out, "product_id=99") {
		t.Errorf("missing warning for invented id: %q", out)
	}
}

func TestExecute_CreateOrderNoItemsAsksForInfo(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "",
		intent.Intent{Kind: intent.KindCreateOrder, Order: &intent.OrderDraft{}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.created) != 0 {
		t.Error("empty order was persisted")
	}
	if !strings.Contains(res.Text, "which products") {
		t.Errorf("expected clarification, got %q", res.Text)
	}
}

func TestExecute_CreateOrderStoreFailure(t *testing.T) {
	f := newFakeOrders()
	f.failOn = errors.New("disk full")
	e := newTestExecutor(f)

	_, err := e.Execute(context.Background(), testOwner(), "chat-1", "",
		intent.Intent{
			Kind: intent.KindCreateOrder,
			Order: &intent.OrderDraft{Items: []intent.OrderItem{
				{ProductID: 1, Name: "Phone X", Quantity: 1, Price: 299},
			}},
		})
	if err == nil {
		t.Fatal("store failure did not surface as error")
	}
}

func TestExecute_FetchOrders(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := f.CreateOrder(ctx, store.NewOrder{
			ConversationID: "chat-1",
			Items:          []store.NewOrderLine{{Name: "Phone X", Quantity: 1, UnitPrice: 299}},
		}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := e.Execute(ctx, testOwner(), "chat-1", "my orders",
		intent.Intent{Kind: intent.KindFetchOrders})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.Count(res.Text, "\n"); got != 5 {
		t.Errorf("listed lines = %d, want page of 5", got)
	}
}

func TestExecute_FetchOrdersEmpty(t *testing.T) {
	e := newTestExecutor(newFakeOrders())
	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "my orders",
		intent.Intent{Kind: intent.KindFetchOrders})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Text, "no orders") {
		t.Errorf("expected empty-state reply, got %q", res.Text)
	}
}

func TestExecute_CancelByPayloadID(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)
	ctx := context.Background()
	o, _ := f.CreateOrder(ctx, store.NewOrder{ConversationID: "chat-1",
		Items: []store.NewOrderLine{{Name: "Phone X", Quantity: 1, UnitPrice: 299}}})

	res, err := e.Execute(ctx, testOwner(), "chat-1", "cancel it",
		intent.Intent{Kind: intent.KindCancelOrder, Cancel: &intent.CancelOrder{OrderID: o.ID}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.orders[o.ID].Status != store.StatusCancelled {
		t.Error("order not cancelled")
	}
	if !strings.Contains(res.Text, "cancelled") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestExecute_CancelResolvesLastTextReference(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.CreateOrder(ctx, store.NewOrder{ConversationID: "chat-1",
			Items: []store.NewOrderLine{{Name: "Phone X", Quantity: 1, UnitPrice: 299}}})
	}

	// Two references: the last one wins.
	_, err := e.Execute(ctx, testOwner(), "chat-1",
		"not order #1, please cancel order #3",
		intent.Intent{Kind: intent.KindCancelOrder, Cancel: &intent.CancelOrder{}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.orders[1].Status == store.StatusCancelled {
		t.Error("cancelled the first reference instead of the last")
	}
	if f.orders[3].Status != store.StatusCancelled {
		t.Error("last referenced order not cancelled")
	}
}

func TestExecute_CancelWithoutReferenceAsks(t *testing.T) {
	e := newTestExecutor(newFakeOrders())
	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "cancel my order",
		intent.Intent{Kind: intent.KindCancelOrder})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Text, "Which order") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestExecute_CancelShippedRefusedAsReply(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)
	ctx := context.Background()
	o, _ := f.CreateOrder(ctx, store.NewOrder{ConversationID: "chat-1",
		Items: []store.NewOrderLine{{Name: "Phone X", Quantity: 1, UnitPrice: 299}}})
	o.Status = store.StatusShipped

	res, err := e.Execute(ctx, testOwner(), "chat-1", "cancel order #1",
		intent.Intent{Kind: intent.KindCancelOrder})
	if err != nil {
		t.Fatalf("business refusal surfaced as error: %v", err)
	}
	if !strings.Contains(res.Text, "shipped") {
		t.Errorf("reply = %q", res.Text)
	}
	if f.orders[o.ID].Status != store.StatusShipped {
		t.Error("shipped order mutated by refused cancel")
	}
}

func TestExecute_CancelUnknownOrder(t *testing.T) {
	e := newTestExecutor(newFakeOrders())
	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "cancel order #42",
		intent.Intent{Kind: intent.KindCancelOrder})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Text, "#42") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestExecute_AskForInfo(t *testing.T) {
	e := newTestExecutor(newFakeOrders())

	res, err := e.Execute(context.Background(), testOwner(), "chat-1", "",
		intent.Intent{Kind: intent.KindAskForInfo, Ask: &intent.AskForInfo{
			Missing: []string{"contact", "location"},
			Message: "Could you share your phone number and address?",
		}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "Could you share your phone number and address?" {
		t.Errorf("reply = %q", res.Text)
	}

	// No message from the model: fall back to the missing-fields template.
	res, err = e.Execute(context.Background(), testOwner(), "chat-1", "",
		intent.Intent{Kind: intent.KindAskForInfo, Ask: &intent.AskForInfo{
			Missing: []string{"contact", "payment"},
		}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Text, "contact, payment") {
		t.Errorf("fallback reply = %q", res.Text)
	}
}

func TestExecute_LocalizedReplies(t *testing.T) {
	f := newFakeOrders()
	e := newTestExecutor(f)
	owner := &store.Owner{ID: 1, Language: "es"}

	res, err := e.Execute(context.Background(), owner, "chat-1", "mis pedidos",
		intent.Intent{Kind: intent.KindFetchOrders})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Text, "pedidos") {
		t.Errorf("expected Spanish reply, got %q", res.Text)
	}

	// Unknown language falls back to the configured default.
	owner.Language = "fr"
	res, _ = e.Execute(context.Background(), owner, "chat-1", "orders",
		intent.Intent{Kind: intent.KindFetchOrders})
	if !strings.Contains(res.Text, "no orders") {
		t.Errorf("fallback reply = %q", res.Text)
	}
}

func TestResolveOrderRef(t *testing.T) {
	tests := []struct {
		name string
		in   intent.Intent
		text string
		want int64
	}{
		{"payload id wins", intent.Intent{Cancel: &intent.CancelOrder{OrderID: 7}}, "cancel order #3", 7},
		{"order hash", intent.Intent{}, "cancel order #12", 12},
		{"bare hash", intent.Intent{}, "cancel #8 please", 8},
		{"case insensitive", intent.Intent{}, "CANCEL ORDER # 4", 4},
		{"last of many", intent.Intent{}, "order #1 no wait order #2", 2},
		{"none", intent.Intent{}, "cancel my order", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveOrderRef(tt.in, tt.text); got != tt.want {
				t.Errorf("resolveOrderRef = %d, want %d", got, tt.want)
			}
		})
	}
}
