package oms

import (
	"strconv"
	"strings"
)

// GST treatment labels derived from an order item's tax composition.
const (
	GSTTypeCGSTSGST     = "CGST-SGST"
	GSTTypeIGST         = "IGST"
	GSTTypeUndetermined = ""
)

// itemPaths are the nesting variants order documents use for line items,
// probed in order. Each path is a chain of object keys ending in a key
// whose value is the item array.
var itemPaths = [][]string{
	{"data", "orderPODetails", "items"},
	{"data", "orderPODetails", "orderItems"},
	{"data", "items"},
	{"data", "orderItems"},
	{"data", "boqDetails", "items"},
	{"data", "boqDetails", "orderItems"},
	{"orderPODetails", "items"},
	{"orderPODetails", "orderItems"},
	{"items"},
	{"orderItems"},
	{"boqDetails", "items"},
	{"boqDetails", "orderItems"},
}

// LocateItems finds the line-item array in an order detail document,
// tolerating the known nesting variants. Returns nil when no variant
// holds items.
func LocateItems(detail map[string]any) []map[string]any {
	for _, path := range itemPaths {
		node := any(detail)
		ok := true
		for _, key := range path {
			m, isMap := node.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			node, ok = m[key]
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		arr, isArr := node.([]any)
		if !isArr || len(arr) == 0 {
			continue
		}
		items := make([]map[string]any, 0, len(arr))
		for _, entry := range arr {
			if m, isMap := entry.(map[string]any); isMap {
				items = append(items, m)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// GSTType classifies an order item's tax treatment from which tax
// components it carries. Ambiguous combinations are undetermined; the
// caller decides whether that is an error.
func GSTType(item map[string]any) string {
	hasCGST := taxPresent(item, "cgst")
	hasSGST := taxPresent(item, "sgst")
	hasIGST := taxPresent(item, "igst")

	switch {
	case (hasCGST || hasSGST) && !hasIGST:
		return GSTTypeCGSTSGST
	case hasIGST && !hasCGST && !hasSGST:
		return GSTTypeIGST
	default:
		return GSTTypeUndetermined
	}
}

func taxPresent(item map[string]any, name string) bool {
	if v, ok := item[name]; ok && v != nil {
		return true
	}
	// Some documents list components in a taxes array instead.
	for _, t := range taxEntries(item) {
		if s, ok := t["type"].(string); ok && strings.EqualFold(s, name) {
			return true
		}
		if s, ok := t["name"].(string); ok && strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// TaxComponentRate returns the rate of the named tax component (cgst,
// sgst, igst) from the item's taxes array.
func TaxComponentRate(item map[string]any, name string) (float64, bool) {
	for _, t := range taxEntries(item) {
		label, _ := t["type"].(string)
		if label == "" {
			label, _ = t["name"].(string)
		}
		if !strings.EqualFold(label, name) {
			continue
		}
		if rate, ok := asFloat(t["rate"]); ok {
			return rate, true
		}
	}
	return 0, false
}

// ItemName returns the order item's display name, falling back to the
// master catalog name.
func ItemName(item map[string]any) string {
	if s, ok := item["name"].(string); ok && s != "" {
		return s
	}
	return MasterItemName(item)
}

// MasterItemName returns the catalog name the order item was created from.
func MasterItemName(item map[string]any) string {
	if s, ok := item["masterItemName"].(string); ok && s != "" {
		return s
	}
	s, _ := item["master_item_name"].(string)
	return s
}

// ItemCode returns the order item's catalog code, "" when absent.
func ItemCode(item map[string]any) string {
	if s := asString(item["itemCode"]); s != "" {
		return s
	}
	return asString(item["item_code"])
}

// HSNCode returns the order item's HSN code, "" when absent.
func HSNCode(item map[string]any) string {
	for _, key := range []string{"hsnCode", "hsn_code", "hsn"} {
		if s := asString(item[key]); s != "" {
			return s
		}
	}
	return ""
}

// TotalQuantity returns the ordered quantity of an order item.
func TotalQuantity(item map[string]any) (float64, bool) {
	return asFloat(item["quantity"])
}

// Unit returns the order item's unit of measure, "" when absent.
func Unit(item map[string]any) string {
	s, _ := item["unit"].(string)
	return s
}

// TaxRates collects the distinct GST rates available on an order item,
// preserving first-seen order.
func TaxRates(item map[string]any) []float64 {
	var rates []float64
	seen := map[float64]bool{}
	for _, t := range taxEntries(item) {
		rate, ok := asFloat(t["rate"])
		if !ok || seen[rate] {
			continue
		}
		seen[rate] = true
		rates = append(rates, rate)
	}
	if len(rates) == 0 {
		if rate, ok := asFloat(item["gstRate"]); ok {
			rates = append(rates, rate)
		} else if rate, ok := asFloat(item["gst_rate"]); ok {
			rates = append(rates, rate)
		}
	}
	return rates
}

// BillableQuantity returns the quantity still open for billing on an
// order item.
func BillableQuantity(item map[string]any) (float64, bool) {
	if q, ok := asFloat(item["unassignedQuantity"]); ok {
		return q, true
	}
	if q, ok := asFloat(item["unassigned_quantity"]); ok {
		return q, true
	}
	return 0, false
}

// UnitRate returns the contracted unit rate of an order item.
func UnitRate(item map[string]any) (float64, bool) {
	if r, ok := asFloat(item["unitRate"]); ok {
		return r, true
	}
	if r, ok := asFloat(item["unit_rate"]); ok {
		return r, true
	}
	return 0, false
}

func taxEntries(item map[string]any) []map[string]any {
	arr, ok := item["taxes"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, entry := range arr {
		if m, isMap := entry.(map[string]any); isMap {
			out = append(out, m)
		}
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
