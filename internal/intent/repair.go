package intent

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// balancedObject returns the substring of s starting at the first '{' and
// ending at its matching '}', honoring strings and escapes. ok is false when
// the braces never balance (truncated output).
func balancedObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	if start == -1 {
		return "", false
	}
	return s[start:], false
}

// closeTruncated appends the closers a truncated JSON fragment is missing:
// an open string is terminated first, then every unmatched '[' and '{' gets
// its matching ']' or '}' in proper nesting order.
func closeTruncated(fragment string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := fragment
	if inString {
		out += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

var (
	productIDRe = regexp.MustCompile(`"productId"\s*:\s*"?(\d+)"?`)
	quantityRe  = regexp.MustCompile(`"quantity"\s*:\s*"?(\d+)"?`)
	priceRe     = regexp.MustCompile(`"price"\s*:\s*"?(\d+(?:\.\d+)?)"?`)
)

// scanOrderItems recovers order lines by scanning raw text for repeated
// productId/quantity/price fields and pairing them positionally. Missing
// quantities default to 1, missing prices to fallbackPrice. This is the
// last-resort recovery path when even repaired JSON does not parse.
func scanOrderItems(text string, fallbackPrice float64) []OrderItem {
	ids := productIDRe.FindAllStringSubmatch(text, -1)
	if len(ids) == 0 {
		return nil
	}
	quantities := quantityRe.FindAllStringSubmatch(text, -1)
	prices := priceRe.FindAllStringSubmatch(text, -1)

	items := make([]OrderItem, 0, len(ids))
	for i, m := range ids {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		item := OrderItem{ProductID: id, Quantity: 1, Price: fallbackPrice}
		if i < len(quantities) {
			if q, err := strconv.Atoi(quantities[i][1]); err == nil && q > 0 {
				item.Quantity = q
			}
		}
		if i < len(prices) {
			if p, err := strconv.ParseFloat(prices[i][1], 64); err == nil {
				item.Price = p
			}
		}
		items = append(items, item)
	}
	return items
}

// parseOrderDraft parses an order payload, repairing truncation when
// needed. The second return is false only when nothing usable could be
// recovered from either the fragment or the surrounding raw text.
func parseOrderDraft(fragment, rawText string, fallbackPrice float64) (*OrderDraft, bool) {
	var draft OrderDraft
	if err := json.Unmarshal([]byte(fragment), &draft); err == nil && len(draft.Items) > 0 {
		normalizeItems(&draft, fallbackPrice)
		return &draft, true
	}

	repaired := closeTruncated(fragment)
	draft = OrderDraft{}
	if err := json.Unmarshal([]byte(repaired), &draft); err == nil && len(draft.Items) > 0 {
		normalizeItems(&draft, fallbackPrice)
		return &draft, true
	}

	// Field scan: prefer whichever of (fragment, full raw text) yields more.
	fromFragment := scanOrderItems(fragment, fallbackPrice)
	fromRaw := scanOrderItems(rawText, fallbackPrice)
	items := fromFragment
	if len(fromRaw) > len(fromFragment) {
		items = fromRaw
	}
	if len(items) == 0 {
		return nil, false
	}
	return &OrderDraft{Items: items}, true
}

func normalizeItems(draft *OrderDraft, fallbackPrice float64) {
	for i := range draft.Items {
		if draft.Items[i].Quantity <= 0 {
			draft.Items[i].Quantity = 1
		}
		if draft.Items[i].Price == 0 && fallbackPrice > 0 {
			draft.Items[i].Price = fallbackPrice
		}
	}
}
