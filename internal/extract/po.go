// Package extract pulls normalized purchase-order numbers and line items
// out of decoded OCR payloads. The payloads are produced by a vision model
// and vary wildly in shape, so everything here is heuristic and table-driven.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// maxFlattenDepth bounds the recursive text flatten so adversarial or
// degenerate payloads cannot blow the stack.
const maxFlattenDepth = 5

// poFieldNames are candidate direct-field keys, in precedence order.
var poFieldNames = []string{
	"po_number", "poNumber", "po_no",
	"order_number", "orderNumber", "order_no", "orderNo",
	"purchase_order_number", "purchaseOrderNumber",
	"buyer_order_number", "buyerOrderNumber",
	"purchase_order_no", "purchaseOrderNo",
	"po#", "order#", "po", "order",
}

// poKeywords label a PO value in free text, longest phrases first so
// "purchase order number" wins over "order number".
var poKeywords = []string{
	"purchase order number", "purchase order no",
	"buyer order number", "buyer order no",
	"purchase order", "po number", "po no",
	"order number", "order no", "po#", "order#",
}

// poSectionKeys are nested objects worth a second direct-field pass.
var poSectionKeys = []string{"header", "invoice_header", "bill_header", "details", "summary"}

// poStopWords are values that look like identifiers but are really
// column labels picked up from tabular documents.
var poStopWords = map[string]bool{
	"date": true, "amount": true, "total": true,
	"quantity": true, "gst": true, "tax": true, "invoice": true,
}

var (
	poKeywordPatterns []*regexp.Regexp
	poGenericPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b([A-Z]{2,4}-?[A-Z0-9]{3,}-?[0-9]+)\b`),
		regexp.MustCompile(`(?i)\b([A-Z]{2,4}-[0-9]{4,})\b`),
		regexp.MustCompile(`(?i)\b(ORD-?[A-Z0-9]+)\b`),
		regexp.MustCompile(`(?i)\b(PO#?\s?[0-9]{3,})\b`),
	}
)

func init() {
	for _, kw := range poKeywords {
		p := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw) + `\s*[:#\-]?\s*([A-Za-z0-9\-/]+)`)
		poKeywordPatterns = append(poKeywordPatterns, p)
	}
}

// PONumber extracts a purchase-order number from payload. It tries direct
// fields first, then a bounded flatten of all text with keyword and generic
// identifier patterns, then the same direct fields inside known header
// sections. Returns "" when nothing plausible is found; absence is not an
// error at this stage.
func PONumber(payload map[string]any) string {
	if payload == nil {
		return ""
	}

	// Strategy 1: direct fields at the top level.
	for _, name := range poFieldNames {
		if v, ok := lookupField(payload, name); ok {
			if po := cleanPOCandidate(v); po != "" {
				return po
			}
		}
	}

	// Strategy 2: scan flattened text.
	text := flattenText(payload, 0)
	if text != "" {
		for _, p := range poKeywordPatterns {
			if m := p.FindStringSubmatch(text); m != nil {
				if po := cleanPOCandidate(m[1]); po != "" {
					return po
				}
			}
		}
		for _, p := range poGenericPatterns {
			if m := p.FindStringSubmatch(text); m != nil {
				if po := cleanPOCandidate(m[1]); po != "" {
					return po
				}
			}
		}
	}

	// Strategy 3: direct fields inside known sections.
	for _, section := range poSectionKeys {
		sub, ok := payload[section].(map[string]any)
		if !ok {
			continue
		}
		for _, name := range poFieldNames {
			if v, ok := lookupField(sub, name); ok {
				if po := cleanPOCandidate(v); po != "" {
					return po
				}
			}
		}
	}

	return ""
}

// cleanPOCandidate stringifies, trims and validates a candidate value.
func cleanPOCandidate(v any) string {
	s := strings.TrimSpace(stringify(v))
	if !validPONumber(s) {
		return ""
	}
	return s
}

// validPONumber rejects values too short or too label-like to be a real
// order identifier.
func validPONumber(s string) bool {
	if len(s) < 3 {
		return false
	}
	if poStopWords[strings.ToLower(s)] {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	switch {
	case hasLetter && hasDigit:
		return true
	case hasLetter && len(s) >= 5:
		return true
	case hasDigit && len(s) >= 4:
		return true
	}
	return false
}

// lookupField returns payload[name], falling back to a case-insensitive
// scan of the keys. OCR output is inconsistent about casing.
func lookupField(payload map[string]any, name string) (any, bool) {
	if v, ok := payload[name]; ok && present(v) {
		return v, true
	}
	lower := strings.ToLower(name)
	for k, v := range payload {
		if strings.ToLower(k) == lower && present(v) {
			return v, true
		}
	}
	return nil, false
}

// flattenText walks payload down to maxFlattenDepth and joins every string
// or scalar leaf into one searchable blob, keeping "key: value" adjacency
// so keyword patterns can anchor on labels.
func flattenText(v any, depth int) string {
	if depth > maxFlattenDepth {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		var parts []string
		for k, child := range t {
			flat := flattenText(child, depth+1)
			if flat != "" {
				parts = append(parts, k+": "+flat)
			}
		}
		return strings.Join(parts, " ")
	case []any:
		var parts []string
		for _, child := range t {
			if flat := flattenText(child, depth+1); flat != "" {
				parts = append(parts, flat)
			}
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	default:
		return stringify(t)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a trailing ".0" so "12345" survives the round trip.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}
