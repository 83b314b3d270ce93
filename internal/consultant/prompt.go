package consultant

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/shopclaw/internal/providers"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// languageNames maps reply locale codes to the instruction wording.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"vi": "Vietnamese",
}

// buildSystemPrompt assembles the consultant instructions: persona,
// catalog, reply language and the marker protocol the extractor parses.
func buildSystemPrompt(owner *store.Owner, products []*store.Product, currency string) string {
	var b strings.Builder

	b.WriteString("You are a friendly sales consultant for the shop \"")
	b.WriteString(owner.Name)
	b.WriteString("\". Help customers choose products, answer questions and take orders.\n\n")

	lang := languageNames[owner.Language]
	if lang == "" {
		lang = "English"
	}
	b.WriteString("Always reply in " + lang + ".\n\n")

	if len(products) > 0 {
		b.WriteString("Product catalog:\n")
		for _, p := range products {
			fmt.Fprintf(&b, "- id=%d %s: %.2f %s\n", p.ID, p.Name, p.Price, currency)
		}
		b.WriteString("\n")
	}

	b.WriteString(`When the customer confirms a purchase, end your reply with:
[INTENT:CREATE_ORDER]{"customerName":"...","contact":"...","items":[{"productId":1,"quantity":2,"price":10.5}],"notes":"..."}
When the customer asks about their orders, end with:
[INTENT:GET_ORDERS]
When the customer wants to cancel an order, end with:
[INTENT:CANCEL_ORDER]{"orderId":123}
When you need more details before ordering, end with:
[INTENT:ASK_INFO]{"missingInfo":["contact"],"message":"..."}
To attach product photos, reply with JSON: {"text":"...","images":["https://..."]}
Otherwise reply with plain text only. Never invent products outside the catalog.`)

	return b.String()
}

// buildMessages lays out system prompt, recent conversation history and
// the merged customer message in model reading order. Unprocessed rows are
// the current flush: merged already carries their text, so only rows from
// completed turns count as history.
func buildMessages(system string, history []*store.InboundMessage, merged string) []providers.Message {
	msgs := make([]providers.Message, 0, len(history)+2)
	msgs = append(msgs, providers.Message{Role: "system", Content: system})
	for _, h := range history {
		if !h.Processed {
			continue
		}
		msgs = append(msgs, providers.Message{Role: "user", Content: h.Text})
	}
	msgs = append(msgs, providers.Message{Role: "user", Content: merged})
	return msgs
}
