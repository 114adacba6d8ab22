package drafts

import (
	"time"

	"github.com/shopspring/decimal"

	"bills-backend/internal/extract"
)

// Bill is a saved draft bill header tied to one page document.
type Bill struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	UserID      string          `json:"userId"`
	JobID       string          `json:"jobId"`
	PONumber    string          `json:"poNumber"`
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	GSTType     string          `json:"gstType,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Item is one line of a saved draft bill. CGSTRate/SGSTRate carry the
// split for CGST-SGST items and IGSTRate the integrated rate; GSTRate is
// always the total applied. The source bill item and the matched order
// item are retained verbatim for audit.
type Item struct {
	ID          string          `json:"id"`
	BillID      string          `json:"billId"`
	Name        string          `json:"name"`
	MasterName  string          `json:"masterItemName,omitempty"`
	ItemCode    string          `json:"itemCode,omitempty"`
	HSNSAC      string          `json:"hsnSac,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	TotalQty    decimal.Decimal `json:"totalQuantity"`
	BillableQty decimal.Decimal `json:"billableQuantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitRate    decimal.Decimal `json:"unitRate"`
	GSTType     string          `json:"gstType,omitempty"`
	CGSTRate    decimal.Decimal `json:"cgstRate"`
	SGSTRate    decimal.Decimal `json:"sgstRate"`
	IGSTRate    decimal.Decimal `json:"igstRate"`
	GSTRate     decimal.Decimal `json:"gstRate"`
	Amount      decimal.Decimal `json:"amount"`
	BillItem    extract.Item    `json:"billItem,omitempty"`
	OrderItem   map[string]any  `json:"orderItem,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// BillSummary is a listing row: the bill header plus its item count.
type BillSummary struct {
	Bill
	ItemCount int `json:"itemCount"`
}

// Session is the draft workflow state held between confirm, match and
// save. It lives in the session store under the document id.
type Session struct {
	DocumentID   string         `json:"documentId"`
	JobID        string         `json:"jobId"`
	UserID       string         `json:"userId"`
	PONumber     string         `json:"poNumber"`
	OrderID      string         `json:"orderId"`
	OrderNumber  string         `json:"orderNumber"`
	OrderSummary map[string]any `json:"orderSummary,omitempty"`
	OrderDetail  map[string]any `json:"orderDetail,omitempty"`
	Matches      []MatchedItem  `json:"matches,omitempty"`
	Unmatched    []int          `json:"unmatched,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// MatchedItem is one bill-item / order-item pairing enriched with the
// order-side billing context the save step needs.
type MatchedItem struct {
	BillIndex   int            `json:"billIndex"`
	OrderIndex  int            `json:"orderIndex"`
	BillItem    extract.Item   `json:"billItem"`
	OrderItem   map[string]any `json:"orderItem"`
	ItemName    string         `json:"itemName,omitempty"`
	MasterName  string         `json:"masterItemName,omitempty"`
	ItemCode    string         `json:"itemCode,omitempty"`
	HSN         string         `json:"hsn,omitempty"`
	TotalQty    float64        `json:"totalQuantity,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	GSTType     string         `json:"gstType,omitempty"`
	TaxRates    []float64      `json:"availableTaxRates,omitempty"`
	BillableQty float64        `json:"billableQuantity"`
	UnitRate    float64        `json:"unitRate"`
}

// Selection is the user's pick of one matched pair to include in the
// saved draft, with the quantity to bill. CGSTRate and SGSTRate override
// the component rates of a CGST-SGST item; GSTRate overrides the
// integrated rate of an IGST item.
type Selection struct {
	BillIndex  int      `json:"billIndex"`
	OrderIndex int      `json:"orderIndex"`
	Quantity   float64  `json:"quantity"`
	GSTRate    *float64 `json:"gstRate,omitempty"`
	CGSTRate   *float64 `json:"cgstRate,omitempty"`
	SGSTRate   *float64 `json:"sgstRate,omitempty"`
}
