package buffer

import "strings"

// fillerTokens are acknowledgement words users often repeat while typing in
// bursts ("ok ok ok"). Immediate repeats are dropped during merge.
var fillerTokens = map[string]bool{
	"ok":   true,
	"okay": true,
	"yes":  true,
	"yep":  true,
	"hmm":  true,
	"hm":   true,
	"si":   true,
	"sí":   true,
	"vâng": true,
}

// MergeTexts joins buffered messages into one string: single spaces,
// collapsed whitespace, immediately-repeated filler tokens dropped.
func MergeTexts(texts []string) string {
	var tokens []string
	for _, t := range texts {
		tokens = append(tokens, strings.Fields(t)...)
	}

	out := make([]string, 0, len(tokens))
	prevNorm := ""
	for _, tok := range tokens {
		norm := normalizeToken(tok)
		if norm != "" && norm == prevNorm && fillerTokens[norm] {
			continue
		}
		out = append(out, tok)
		prevNorm = norm
	}
	return strings.Join(out, " ")
}

func normalizeToken(tok string) string {
	return strings.ToLower(strings.Trim(tok, ".,!?…"))
}
