package oms

import "testing"

func item(name string) map[string]any {
	return map[string]any{"name": name}
}

func TestLocateItemsNestingVariants(t *testing.T) {
	cases := []struct {
		name   string
		detail map[string]any
	}{
		{"orderPODetails.items", map[string]any{
			"orderPODetails": map[string]any{"items": []any{item("a")}},
		}},
		{"orderPODetails.orderItems", map[string]any{
			"orderPODetails": map[string]any{"orderItems": []any{item("a")}},
		}},
		{"top-level items", map[string]any{
			"items": []any{item("a")},
		}},
		{"top-level orderItems", map[string]any{
			"orderItems": []any{item("a")},
		}},
		{"boqDetails.items", map[string]any{
			"boqDetails": map[string]any{"items": []any{item("a")}},
		}},
		{"data envelope", map[string]any{
			"data": map[string]any{
				"orderPODetails": map[string]any{"items": []any{item("a")}},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := LocateItems(tc.detail)
			if len(items) != 1 || items[0]["name"] != "a" {
				t.Fatalf("items = %+v", items)
			}
		})
	}
}

func TestLocateItemsPathPrecedence(t *testing.T) {
	detail := map[string]any{
		"orderPODetails": map[string]any{"items": []any{item("po-items")}},
		"items":          []any{item("top-items")},
	}
	items := LocateItems(detail)
	if len(items) != 1 || items[0]["name"] != "po-items" {
		t.Fatalf("precedence broken: %+v", items)
	}
}

func TestLocateItemsSkipsEmptyArrays(t *testing.T) {
	detail := map[string]any{
		"orderPODetails": map[string]any{"items": []any{}},
		"items":          []any{item("fallback")},
	}
	items := LocateItems(detail)
	if len(items) != 1 || items[0]["name"] != "fallback" {
		t.Fatalf("empty array should fall through: %+v", items)
	}
}

func TestLocateItemsNone(t *testing.T) {
	if got := LocateItems(map[string]any{"foo": "bar"}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if got := LocateItems(nil); got != nil {
		t.Fatalf("expected nil for nil detail, got %+v", got)
	}
}

func TestGSTType(t *testing.T) {
	cases := []struct {
		name string
		item map[string]any
		want string
	}{
		{"cgst and sgst", map[string]any{"cgst": 9.0, "sgst": 9.0}, GSTTypeCGSTSGST},
		{"cgst only", map[string]any{"cgst": 9.0}, GSTTypeCGSTSGST},
		{"igst only", map[string]any{"igst": 18.0}, GSTTypeIGST},
		{"all three", map[string]any{"cgst": 9.0, "sgst": 9.0, "igst": 18.0}, GSTTypeUndetermined},
		{"none", map[string]any{}, GSTTypeUndetermined},
		{"from taxes array", map[string]any{
			"taxes": []any{map[string]any{"type": "IGST", "rate": 18.0}},
		}, GSTTypeIGST},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GSTType(tc.item); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTaxRatesDeduped(t *testing.T) {
	rates := TaxRates(map[string]any{
		"taxes": []any{
			map[string]any{"type": "CGST", "rate": 9.0},
			map[string]any{"type": "SGST", "rate": 9.0},
			map[string]any{"type": "CESS", "rate": 1.0},
		},
	})
	if len(rates) != 2 || rates[0] != 9.0 || rates[1] != 1.0 {
		t.Fatalf("rates = %v", rates)
	}
}

func TestTaxRatesFallbackField(t *testing.T) {
	rates := TaxRates(map[string]any{"gstRate": 18.0})
	if len(rates) != 1 || rates[0] != 18.0 {
		t.Fatalf("rates = %v", rates)
	}
}

func TestTaxComponentRate(t *testing.T) {
	it := map[string]any{
		"taxes": []any{
			map[string]any{"type": "CGST", "rate": 9.0},
			map[string]any{"name": "sgst", "rate": 9.0},
		},
	}
	if rate, ok := TaxComponentRate(it, "cgst"); !ok || rate != 9.0 {
		t.Fatalf("cgst = %v ok=%v", rate, ok)
	}
	// Matching falls back to the name key, case-insensitively.
	if rate, ok := TaxComponentRate(it, "SGST"); !ok || rate != 9.0 {
		t.Fatalf("sgst = %v ok=%v", rate, ok)
	}
	if _, ok := TaxComponentRate(it, "igst"); ok {
		t.Fatal("expected missing igst component")
	}
	if _, ok := TaxComponentRate(map[string]any{}, "cgst"); ok {
		t.Fatal("expected missing component without taxes")
	}
}

func TestItemMetadata(t *testing.T) {
	it := map[string]any{
		"name":           "Cement OPC 53",
		"masterItemName": "Cement OPC 53 Grade",
		"itemCode":       "CEM-53",
		"hsnCode":        float64(2523),
		"quantity":       25.0,
		"unit":           "bags",
	}
	if got := ItemName(it); got != "Cement OPC 53" {
		t.Errorf("ItemName = %q", got)
	}
	if got := MasterItemName(it); got != "Cement OPC 53 Grade" {
		t.Errorf("MasterItemName = %q", got)
	}
	if got := ItemCode(it); got != "CEM-53" {
		t.Errorf("ItemCode = %q", got)
	}
	if got := HSNCode(it); got != "2523" {
		t.Errorf("HSNCode = %q, want stringified 2523", got)
	}
	if q, ok := TotalQuantity(it); !ok || q != 25.0 {
		t.Errorf("TotalQuantity = %v ok=%v", q, ok)
	}
	if got := Unit(it); got != "bags" {
		t.Errorf("Unit = %q", got)
	}

	// Without a display name the master name stands in.
	if got := ItemName(map[string]any{"masterItemName": "Cement"}); got != "Cement" {
		t.Errorf("ItemName fallback = %q", got)
	}
}

func TestBillableQuantityAndUnitRate(t *testing.T) {
	it := map[string]any{"unassignedQuantity": 12.5, "unitRate": 100.0}
	q, ok := BillableQuantity(it)
	if !ok || q != 12.5 {
		t.Fatalf("quantity = %v ok=%v", q, ok)
	}
	r, ok := UnitRate(it)
	if !ok || r != 100.0 {
		t.Fatalf("rate = %v ok=%v", r, ok)
	}

	snake := map[string]any{"unassigned_quantity": 3.0, "unit_rate": 55.5}
	if q, ok := BillableQuantity(snake); !ok || q != 3.0 {
		t.Fatalf("snake quantity = %v ok=%v", q, ok)
	}
	if r, ok := UnitRate(snake); !ok || r != 55.5 {
		t.Fatalf("snake rate = %v ok=%v", r, ok)
	}

	if _, ok := BillableQuantity(map[string]any{}); ok {
		t.Fatal("expected missing quantity")
	}
}
