package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Intent markers the consultant prompt instructs the model to emit.
const (
	markerCreateOrder   = "[INTENT:CREATE_ORDER]"
	markerFetchOrders   = "[INTENT:GET_ORDERS]"
	markerCancelOrder   = "[INTENT:CANCEL_ORDER]"
	markerAskInfo       = "[INTENT:ASK_INFO]"
	markerLegacyConfirm = "[ORDER_CONFIRMED]"
)

// defaultMissingInfo is used when the ask-info payload is unparseable.
var defaultMissingInfo = []string{"contact", "location", "payment"}

// Extractor parses model output into intents.
type Extractor struct {
	products      ProductLookup
	fallbackPrice float64
}

// NewExtractor creates an Extractor. products may be nil; the legacy
// confirmation branch then emits placeholder lines for every item.
func NewExtractor(products ProductLookup, fallbackPrice float64) *Extractor {
	return &Extractor{products: products, fallbackPrice: fallbackPrice}
}

// Extract resolves model output to exactly one Intent. It never fails:
// malformed structured payloads degrade to the safest variant and are
// logged, so a bad model turn can never crash a conversation.
//
// Branches are tried in order; the first match wins:
//  1. whole text is a JSON object with a "text" field → plain reply
//  2. create-order marker → order draft (with truncation repair)
//  3. fetch-orders marker
//  4. cancel-order marker
//  5. ask-for-info marker
//  6. legacy order-confirmation marker → normalized order draft
//  7. no marker → plain reply with the full text
func (e *Extractor) Extract(ctx context.Context, modelText string) Intent {
	text := strings.TrimSpace(modelText)
	if text == "" {
		return plainReply("")
	}

	if in, ok := extractJSONReply(text); ok {
		return in
	}
	if in, ok := e.extractCreateOrder(text); ok {
		return in
	}
	if in, ok := extractFetchOrders(text); ok {
		return in
	}
	if in, ok := extractCancelOrder(text); ok {
		return in
	}
	if in, ok := extractAskForInfo(text); ok {
		return in
	}
	if in, ok := e.extractLegacyConfirm(ctx, text); ok {
		return in
	}

	return plainReply(text)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// drop an optional language tag like ```json
		head := strings.TrimSpace(trimmed[:idx])
		if len(head) <= 10 && !strings.ContainsAny(head, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractJSONReply matches branch 1: the (optionally fenced) text starts
// with a JSON object carrying a string "text" field, with an optional
// images list filtered to strings only. Anything after the object,
// markers included, is ignored: this branch outranks all later ones.
func extractJSONReply(text string) (Intent, bool) {
	candidate := stripFences(text)
	if !strings.HasPrefix(candidate, "{") {
		return Intent{}, false
	}

	fragment, balanced := balancedObject(candidate)
	if !balanced {
		return Intent{}, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
		return Intent{}, false
	}
	replyText, ok := payload["text"].(string)
	if !ok {
		return Intent{}, false
	}

	var images []string
	if raw, ok := payload["images"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				images = append(images, s)
			}
		}
	}

	return Intent{Kind: KindPlainReply, Reply: PlainReply{Text: replyText, Images: images}}, true
}

func (e *Extractor) extractCreateOrder(text string) (Intent, bool) {
	idx := strings.Index(text, markerCreateOrder)
	if idx < 0 {
		return Intent{}, false
	}

	visible := stripConfirmationBoilerplate(text[:idx])
	after := text[idx+len(markerCreateOrder):]

	fragment, balanced := balancedObject(after)
	if fragment == "" {
		slog.Warn("create-order marker without JSON object, degrading to plain reply")
		return plainReply(visible), true
	}
	if !balanced {
		slog.Warn("create-order payload truncated, attempting repair", "fragment_len", len(fragment))
	}

	draft, ok := parseOrderDraft(fragment, text, e.fallbackPrice)
	if !ok {
		slog.Warn("create-order payload unrecoverable, degrading to plain reply")
		return plainReply(visible), true
	}

	return Intent{
		Kind:  KindCreateOrder,
		Reply: PlainReply{Text: visible},
		Order: draft,
	}, true
}

func extractFetchOrders(text string) (Intent, bool) {
	idx := strings.Index(text, markerFetchOrders)
	if idx < 0 {
		return Intent{}, false
	}
	visible := strings.TrimSpace(strings.Replace(text, markerFetchOrders, "", 1))
	return Intent{Kind: KindFetchOrders, Reply: PlainReply{Text: visible}}, true
}

func extractCancelOrder(text string) (Intent, bool) {
	idx := strings.Index(text, markerCancelOrder)
	if idx < 0 {
		return Intent{}, false
	}

	visible := strings.TrimSpace(text[:idx])
	after := text[idx+len(markerCancelOrder):]

	fragment, _ := balancedObject(after)
	var payload CancelOrder
	if fragment == "" || json.Unmarshal([]byte(fragment), &payload) != nil {
		slog.Warn("cancel-order payload unparseable, degrading to plain reply")
		return plainReply(visible), true
	}

	return Intent{Kind: KindCancelOrder, Reply: PlainReply{Text: visible}, Cancel: &payload}, true
}

func extractAskForInfo(text string) (Intent, bool) {
	idx := strings.Index(text, markerAskInfo)
	if idx < 0 {
		return Intent{}, false
	}

	visible := strings.TrimSpace(text[:idx])
	after := text[idx+len(markerAskInfo):]

	ask := AskForInfo{}
	fragment, _ := balancedObject(after)
	if fragment == "" || json.Unmarshal([]byte(fragment), &ask) != nil || len(ask.Missing) == 0 {
		slog.Warn("ask-info payload unparseable, using default missing fields")
		ask.Missing = append([]string(nil), defaultMissingInfo...)
	}
	if ask.Message == "" {
		ask.Message = visible
	}

	return Intent{Kind: KindAskForInfo, Reply: PlainReply{Text: visible}, Ask: &ask}, true
}

// legacyConfirmPayload is the misused order-confirmation shape some prompt
// versions taught the model: item names as strings instead of line objects.
type legacyConfirmPayload struct {
	Items       []string `json:"items"`
	PhoneNumber string   `json:"phoneNumber"`
	Notes       string   `json:"notes"`
}

var legacyItemRe = regexp.MustCompile(`^(.*?)\s*\((\d+)\s*units?\)\s*$`)

func (e *Extractor) extractLegacyConfirm(ctx context.Context, text string) (Intent, bool) {
	idx := strings.Index(text, markerLegacyConfirm)
	if idx < 0 {
		return Intent{}, false
	}

	visible := stripConfirmationBoilerplate(text[:idx])
	after := text[idx+len(markerLegacyConfirm):]

	fragment, _ := balancedObject(after)
	var payload legacyConfirmPayload
	if fragment == "" || json.Unmarshal([]byte(closeTruncated(fragment)), &payload) != nil || len(payload.Items) == 0 {
		slog.Warn("legacy confirmation payload unparseable, degrading to plain reply")
		return plainReply(visible), true
	}

	draft := &OrderDraft{Contact: payload.PhoneNumber, Notes: payload.Notes}
	for _, raw := range payload.Items {
		name := strings.TrimSpace(raw)
		qty := 1
		if m := legacyItemRe.FindStringSubmatch(name); m != nil {
			name = strings.TrimSpace(m[1])
			if q := parseIntDefault(m[2], 1); q > 0 {
				qty = q
			}
		}

		if e.products != nil {
			if ref, ok := e.products.FindProductByName(ctx, name); ok {
				draft.Items = append(draft.Items, OrderItem{
					ProductID: ref.ID,
					Name:      ref.Name,
					Quantity:  qty,
					Price:     ref.Price,
				})
				continue
			}
		}
		// Unresolved names still enter the order: purchase intent is never
		// silently dropped. Zero price flags the line for owner review.
		slog.Warn("legacy confirmation item not found in catalog", "item", name)
		draft.Items = append(draft.Items, OrderItem{Name: name, Quantity: qty, Price: 0})
	}

	return Intent{Kind: KindCreateOrder, Reply: PlainReply{Text: visible}, Order: draft}, true
}

func parseIntDefault(s string, def int) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return def
		}
		n = n*10 + int(s[i]-'0')
	}
	if n == 0 {
		return def
	}
	return n
}

// confirmationBoilerplate are trailing phrases the model tends to emit
// right before a create-order marker. They are stripped from the visible
// reply so the user does not see a premature confirmation twice: the real
// confirmation is rendered only after the order persists.
var confirmationBoilerplate = []string{
	"your order has been confirmed",
	"your order is confirmed",
	"order confirmed",
	"tu pedido ha sido confirmado",
	"pedido confirmado",
	"đơn hàng của bạn đã được xác nhận",
	"đơn hàng đã được xác nhận",
}

func stripConfirmationBoilerplate(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for len(lines) > 0 {
		last := strings.ToLower(strings.TrimSpace(lines[len(lines)-1]))
		if last == "" {
			lines = lines[:len(lines)-1]
			continue
		}
		matched := false
		for _, phrase := range confirmationBoilerplate {
			if strings.Contains(last, phrase) {
				matched = true
				break
			}
		}
		if !matched {
			break
		}
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
