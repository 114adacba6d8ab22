package match

import (
	"encoding/json"
	"fmt"

	"bills-backend/internal/extract"
)

const matchSystemPrompt = `You match line items from a supplier bill against line items from a purchase order.
You always respond with a single JSON object and nothing else.`

const matchRules = `Match each bill item to at most one purchase-order item.
Rules:
- Match on meaning, not exact wording: abbreviations, reordered words, size or grade
  suffixes, and minor spelling differences still count as the same item.
- A matching HSN/SAC code is strong evidence; a conflicting one is strong evidence against.
- Never match two bill items to the same purchase-order item.
- If no purchase-order item is a plausible match, put the bill item's id in "unmatched".

Respond with exactly this JSON shape:
{"matches": [{"billId": "b0", "poId": "p2"}], "unmatched": ["b1"]}
Both fields are required; use empty arrays when there is nothing to report.`

// billItemView is the compact projection of a bill item shown to the model.
type billItemView struct {
	BillID   string `json:"billId"`
	Name     string `json:"name,omitempty"`
	HSNSAC   string `json:"hsn_sac,omitempty"`
	Quantity any    `json:"quantity,omitempty"`
	Unit     any    `json:"unit,omitempty"`
	Rate     any    `json:"rate,omitempty"`
	Amount   any    `json:"amount,omitempty"`
}

// orderItemView is the compact projection of a purchase-order item.
type orderItemView struct {
	POID           string `json:"poId"`
	Name           string `json:"name,omitempty"`
	MasterItemName string `json:"masterItemName,omitempty"`
	HSNSAC         string `json:"hsn_sac,omitempty"`
}

func buildMatchPrompt(billItems []extract.Item, orderItems []map[string]any) (string, error) {
	bills := make([]billItemView, 0, len(billItems))
	for i, it := range billItems {
		bills = append(bills, billItemView{
			BillID:   fmt.Sprintf("b%d", i),
			Name:     it.Name(),
			HSNSAC:   it.HSNSAC(),
			Quantity: it["quantity"],
			Unit:     it["unit"],
			Rate:     it["rate"],
			Amount:   it["amount"],
		})
	}

	orders := make([]orderItemView, 0, len(orderItems))
	for i, oi := range orderItems {
		orders = append(orders, orderItemView{
			POID:           fmt.Sprintf("p%d", i),
			Name:           firstString(oi, "name", "itemName", "item_name"),
			MasterItemName: firstString(oi, "masterItemName", "master_item_name"),
			HSNSAC:         firstString(oi, "hsnCode", "hsn_code", "hsnSac", "hsn_sac"),
		})
	}

	billJSON, err := json.MarshalIndent(bills, "", "  ")
	if err != nil {
		return "", err
	}
	orderJSON, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s\n\nBill items:\n%s\n\nPurchase-order items:\n%s",
		matchRules, billJSON, orderJSON), nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
