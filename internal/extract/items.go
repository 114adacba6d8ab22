package extract

import (
	"fmt"
	"strconv"

	"bills-backend/internal/shared/telemetry"
)

// Item is one normalized bill line item keyed by logical field name.
// The original OCR object is retained under "rawItem" so nothing the
// model produced is lost when the normalization tables miss a key.
type Item map[string]any

// BillID returns the positional identifier assigned during extraction.
func (it Item) BillID() string {
	s, _ := it["billId"].(string)
	return s
}

// Name returns the normalized item description, "" when absent.
func (it Item) Name() string {
	s, _ := it["name"].(string)
	return s
}

// HSNSAC returns the normalized HSN/SAC code, "" when absent.
func (it Item) HSNSAC() string {
	s, _ := it["hsn_sac"].(string)
	return s
}

// FieldRule maps one logical output field to its candidate source keys,
// in precedence order. First present, non-empty key wins.
type FieldRule struct {
	Field     string
	Keys      []string
	Stringify bool
}

// itemContainerKeys are the payload keys that may hold the line-item array.
var itemContainerKeys = []string{"items", "lineItems", "line_items"}

// itemFieldRules is the ordered normalization table for bill line items.
var itemFieldRules = []FieldRule{
	{Field: "name", Keys: []string{
		"name", "itemName", "item_name", "description",
		"productName", "product_name", "itemDescription", "item_description",
	}},
	{Field: "hsn_sac", Keys: []string{
		"hsn", "hsnCode", "hsn_code", "HSN", "HSNCode", "hsnSac", "hsn_sac",
		"sac", "sacCode", "sac_code", "SAC", "SACCode",
	}, Stringify: true},
	{Field: "quantity", Keys: []string{"quantity", "qty", "Quantity", "Qty"}},
	{Field: "unit", Keys: []string{"unit", "uom", "UOM", "units"}},
	{Field: "rate", Keys: []string{"rate", "price", "unitPrice", "unit_price", "unitRate", "unit_rate"}},
	{Field: "amount", Keys: []string{"amount", "total", "totalAmount", "total_amount", "lineTotal", "line_total"}},
	{Field: "tax_rate", Keys: []string{"taxRate", "tax_rate", "gstRate", "gst_rate", "gst", "taxPercent", "tax_percent"}},
	{Field: "cgst", Keys: []string{"cgst", "CGST", "cgstAmount", "cgst_amount"}},
	{Field: "sgst", Keys: []string{"sgst", "SGST", "sgstAmount", "sgst_amount"}},
	{Field: "igst", Keys: []string{"igst", "IGST", "igstAmount", "igst_amount"}},
	{Field: "discount", Keys: []string{"discount", "discountAmount", "discount_amount"}},
}

// Items normalizes the line items of an OCR payload. Entries that are not
// JSON objects are skipped with a log line. Each item gets a positional
// billId ("b0", "b1", ...) used later to correlate fuzzy-match results.
func Items(payload map[string]any) []Item {
	if payload == nil {
		return nil
	}
	var raw []any
	for _, key := range itemContainerKeys {
		if arr, ok := payload[key].([]any); ok && len(arr) > 0 {
			raw = arr
			break
		}
	}
	if raw == nil {
		return nil
	}

	items := make([]Item, 0, len(raw))
	for i, entry := range raw {
		src, ok := entry.(map[string]any)
		if !ok {
			telemetry.Info("extract.item_skipped", map[string]any{
				"index": i, "type": fmt.Sprintf("%T", entry),
			})
			continue
		}
		it := Item{}
		for _, rule := range itemFieldRules {
			for _, key := range rule.Keys {
				v, ok := src[key]
				if !ok || !present(v) {
					continue
				}
				if rule.Stringify {
					it[rule.Field] = stringify(v)
				} else {
					it[rule.Field] = v
				}
				break
			}
		}
		it["rawItem"] = src
		it["billId"] = positionalBillID(len(items))
		items = append(items, it)
	}
	return items
}

func positionalBillID(idx int) string {
	return "b" + strconv.Itoa(idx)
}
