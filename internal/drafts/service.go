package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bills-backend/internal/extract"
	"bills-backend/internal/match"
	"bills-backend/internal/oms"
	"bills-backend/internal/pages"
	"bills-backend/internal/session"
	"bills-backend/internal/shared/metrics"
	"bills-backend/internal/shared/telemetry"
)

// Service drives the confirm -> match -> save draft workflow. All state
// between steps lives in the session store; the service itself is
// stateless.
type Service struct {
	Pages   pages.Repo
	Repo    Repo
	Session session.Store
	Orders  oms.Client
	Matcher *match.Engine
}

// ConfirmResult is what the confirm step hands back to the client.
type ConfirmResult struct {
	DocumentID   string         `json:"documentId"`
	PONumber     string         `json:"poNumber"`
	OrderID      string         `json:"orderId"`
	OrderNumber  string         `json:"orderNumber"`
	SupplierName string         `json:"supplierName,omitempty"`
	OrderSummary map[string]any `json:"orderSummary,omitempty"`
}

// Confirm resolves the PO number against the order service and opens a
// draft session for the document.
func (s *Service) Confirm(ctx context.Context, userID, docID, poNumber string) (ConfirmResult, error) {
	poNumber = strings.TrimSpace(poNumber)
	if poNumber == "" {
		return ConfirmResult{}, fmt.Errorf("%w: poNumber is required", ErrValidation)
	}

	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if doc.DocType != pages.TypeBill {
		return ConfirmResult{}, fmt.Errorf("%w: document is not a bill", ErrValidation)
	}
	if doc.Status == pages.StatusDraftCreated {
		return ConfirmResult{}, fmt.Errorf("%w: draft already created for this document", ErrValidation)
	}

	// Record the confirmed PO on the document. Failure here only loses
	// the breadcrumb, not the workflow.
	if err := s.Pages.UpdatePONumber(ctx, docID, poNumber); err != nil {
		telemetry.Error("draft.po_update_failed", map[string]any{
			"document_id": docID, "error": err.Error(),
		})
	}

	summary, err := s.Orders.OrderByPONumber(ctx, poNumber)
	if err != nil {
		return ConfirmResult{}, err
	}
	detail, err := s.Orders.OrderDetail(ctx, summary.ID)
	if err != nil {
		return ConfirmResult{}, err
	}

	sess := Session{
		DocumentID:   docID,
		JobID:        doc.JobID,
		UserID:       userID,
		PONumber:     poNumber,
		OrderID:      summary.ID,
		OrderNumber:  summary.OrderNumber,
		OrderSummary: summary.Raw,
		OrderDetail:  detail,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.saveSession(ctx, sess); err != nil {
		return ConfirmResult{}, err
	}

	telemetry.Info("draft.confirmed", map[string]any{
		"document_id": docID, "po_number": poNumber, "order_id": summary.ID,
	})
	return ConfirmResult{
		DocumentID:   docID,
		PONumber:     poNumber,
		OrderID:      summary.ID,
		OrderNumber:  summary.OrderNumber,
		SupplierName: summary.SupplierName,
		OrderSummary: summary.Raw,
	}, nil
}

// MatchResult is the outcome of the matching step.
type MatchResult struct {
	DocumentID string        `json:"documentId"`
	Matches    []MatchedItem `json:"matches"`
	// Unmatched carries the bill items no order item could be paired
	// with, so the client can show them grayed out.
	Unmatched []extract.Item `json:"unmatchedBillItems,omitempty"`
}

// MatchItems pairs the document's extracted items against the confirmed
// order's items and stores the result back into the session, restarting
// its TTL.
func (s *Service) MatchItems(ctx context.Context, userID, docID string) (MatchResult, error) {
	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return MatchResult{}, err
	}
	if len(doc.Items) == 0 {
		return MatchResult{}, fmt.Errorf("%w: document has no extracted items", ErrValidation)
	}

	sess, err := s.loadSession(ctx, docID)
	if err != nil {
		return MatchResult{}, err
	}

	orderItems := oms.LocateItems(sess.OrderDetail)
	if orderItems == nil {
		return MatchResult{}, fmt.Errorf("%w: confirmed order has no line items", ErrValidation)
	}

	result, err := s.Matcher.Match(ctx, doc.Items, orderItems)
	if err != nil {
		return MatchResult{}, err
	}

	matches := make([]MatchedItem, 0, len(result.Matches))
	for _, pair := range result.Matches {
		orderItem := orderItems[pair.OrderIndex]
		qty, _ := oms.BillableQuantity(orderItem)
		rate, _ := oms.UnitRate(orderItem)
		totalQty, _ := oms.TotalQuantity(orderItem)
		matches = append(matches, MatchedItem{
			BillIndex:   pair.BillIndex,
			OrderIndex:  pair.OrderIndex,
			BillItem:    doc.Items[pair.BillIndex],
			OrderItem:   orderItem,
			ItemName:    oms.ItemName(orderItem),
			MasterName:  oms.MasterItemName(orderItem),
			ItemCode:    oms.ItemCode(orderItem),
			HSN:         oms.HSNCode(orderItem),
			TotalQty:    totalQty,
			Unit:        oms.Unit(orderItem),
			GSTType:     oms.GSTType(orderItem),
			TaxRates:    oms.TaxRates(orderItem),
			BillableQty: qty,
			UnitRate:    rate,
		})
	}

	sess.Matches = matches
	sess.Unmatched = result.Unmatched
	if err := s.saveSession(ctx, sess); err != nil {
		return MatchResult{}, err
	}

	unmatched := make([]extract.Item, 0, len(result.Unmatched))
	for _, idx := range result.Unmatched {
		unmatched = append(unmatched, doc.Items[idx])
	}

	telemetry.Info("draft.matched", map[string]any{
		"document_id": docID, "matches": len(matches), "unmatched": len(unmatched),
	})
	return MatchResult{DocumentID: docID, Matches: matches, Unmatched: unmatched}, nil
}

// SaveResult is the persisted draft returned by the save step.
type SaveResult struct {
	Bill  Bill   `json:"bill"`
	Items []Item `json:"items"`
}

// Save persists the selected matched pairs as a draft bill, closes the
// session and marks the document draft_created.
func (s *Service) Save(ctx context.Context, userID, docID string, selections []Selection) (SaveResult, error) {
	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return SaveResult{}, err
	}
	if len(selections) == 0 {
		return SaveResult{}, fmt.Errorf("%w: at least one item must be selected", ErrValidation)
	}

	// The session is the workflow gate: once a draft is saved the session
	// is deleted, so a replay fails here as expired rather than tripping
	// over the document status.
	sess, err := s.loadSession(ctx, docID)
	if err != nil {
		return SaveResult{}, err
	}
	if doc.Status == pages.StatusDraftCreated {
		return SaveResult{}, fmt.Errorf("%w: draft already created for this document", ErrValidation)
	}
	if len(sess.Matches) == 0 {
		return SaveResult{}, fmt.Errorf("%w: no matched items in session; run matching first", ErrValidation)
	}

	billID := uuid.NewString()
	now := time.Now().UTC()
	total := decimal.Zero
	items := make([]Item, 0, len(selections))
	gstType := ""

	for _, sel := range selections {
		matched, ok := findMatch(sess.Matches, sel.BillIndex, sel.OrderIndex)
		if !ok {
			return SaveResult{}, fmt.Errorf("%w: no match for bill item %d and order item %d",
				ErrValidation, sel.BillIndex, sel.OrderIndex)
		}
		if sel.Quantity <= 0 {
			return SaveResult{}, fmt.Errorf("%w: quantity must be positive for bill item %d",
				ErrValidation, sel.BillIndex)
		}
		// Billing the full remaining quantity is allowed; exceeding it
		// is not.
		if sel.Quantity > matched.BillableQty {
			return SaveResult{}, fmt.Errorf("%w: quantity %.3f exceeds billable quantity %.3f for bill item %d",
				ErrValidation, sel.Quantity, matched.BillableQty, sel.BillIndex)
		}

		cgst, sgst, igst, gstRate := resolveGSTRates(sel, matched)
		amount := computeAmount(sel.Quantity, matched.UnitRate, gstRate)
		total = total.Add(amount)
		if gstType == "" {
			gstType = matched.GSTType
		}

		items = append(items, Item{
			ID:          uuid.NewString(),
			BillID:      billID,
			Name:        itemName(matched),
			MasterName:  matched.MasterName,
			ItemCode:    matched.ItemCode,
			HSNSAC:      itemHSN(matched),
			Quantity:    decimal.NewFromFloat(sel.Quantity),
			TotalQty:    decimal.NewFromFloat(matched.TotalQty),
			BillableQty: decimal.NewFromFloat(matched.BillableQty),
			Unit:        itemUnit(matched),
			UnitRate:    decimal.NewFromFloat(matched.UnitRate),
			GSTType:     matched.GSTType,
			CGSTRate:    decimal.NewFromFloat(cgst),
			SGSTRate:    decimal.NewFromFloat(sgst),
			IGSTRate:    decimal.NewFromFloat(igst),
			GSTRate:     decimal.NewFromFloat(gstRate),
			Amount:      amount,
			BillItem:    matched.BillItem,
			OrderItem:   matched.OrderItem,
			CreatedAt:   now,
		})
	}

	bill := Bill{
		ID:          billID,
		DocumentID:  docID,
		UserID:      userID,
		JobID:       doc.JobID,
		PONumber:    sess.PONumber,
		OrderID:     sess.OrderID,
		OrderNumber: sess.OrderNumber,
		GSTType:     gstType,
		TotalAmount: total,
		CreatedAt:   now,
	}

	if err := s.Repo.CreateBill(ctx, bill); err != nil {
		return SaveResult{}, fmt.Errorf("create draft bill: %w", err)
	}
	if err := s.Repo.CreateItems(ctx, items); err != nil {
		// Compensate so a half-written draft does not block a retry.
		if delErr := s.Repo.DeleteBill(ctx, billID); delErr != nil {
			telemetry.Error("draft.compensation_failed", map[string]any{
				"bill_id": billID, "error": delErr.Error(),
			})
		}
		return SaveResult{}, fmt.Errorf("create draft items: %w", err)
	}

	if err := s.Pages.UpdateStatus(ctx, docID, pages.StatusDraftCreated); err != nil {
		telemetry.Error("draft.status_update_failed", map[string]any{
			"document_id": docID, "error": err.Error(),
		})
	}
	if err := s.Session.Delete(ctx, docID); err != nil {
		telemetry.Error("draft.session_delete_failed", map[string]any{
			"document_id": docID, "error": err.Error(),
		})
	}

	metrics.IncDraftSaved()
	telemetry.Info("draft.saved", map[string]any{
		"document_id": docID, "bill_id": billID, "items": len(items),
	})
	return SaveResult{Bill: bill, Items: items}, nil
}

// FinalBill is the saved draft plus the source page payload.
type FinalBill struct {
	Bill    Bill            `json:"bill"`
	Items   []Item          `json:"items"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Final returns the saved draft bill for a document.
func (s *Service) Final(ctx context.Context, userID, docID string) (FinalBill, error) {
	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return FinalBill{}, err
	}
	bill, err := s.Repo.GetBillByDocument(ctx, userID, docID)
	if err != nil {
		return FinalBill{}, err
	}
	items, err := s.Repo.ListItems(ctx, bill.ID)
	if err != nil {
		return FinalBill{}, err
	}
	return FinalBill{Bill: bill, Items: items, Payload: doc.Payload}, nil
}

// List returns the user's saved draft bills.
func (s *Service) List(ctx context.Context, userID string) ([]BillSummary, error) {
	return s.Repo.ListBills(ctx, userID)
}

func (s *Service) ownedDocument(ctx context.Context, userID, docID string) (pages.Document, error) {
	doc, err := s.Pages.GetByID(ctx, userID, docID)
	if err != nil {
		if errors.Is(err, pages.ErrNotFound) {
			return pages.Document{}, ErrNotFound
		}
		return pages.Document{}, err
	}
	return doc, nil
}

func (s *Service) loadSession(ctx context.Context, docID string) (Session, error) {
	data, err := s.Session.Get(ctx, docID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Session{}, ErrSessionExpired
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *Service) saveSession(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.Session.Set(ctx, sess.DocumentID, data)
}

func findMatch(matches []MatchedItem, billIndex, orderIndex int) (MatchedItem, bool) {
	for _, m := range matches {
		if m.BillIndex == billIndex && m.OrderIndex == orderIndex {
			return m, true
		}
	}
	return MatchedItem{}, false
}

// resolveGSTRates derives the component and total GST rates for one
// selection. A CGST-SGST item sums its two component rates; an IGST item
// applies the integrated rate. Client overrides win over the rates read
// from the order item's tax components; an undetermined treatment bills
// at 0%.
func resolveGSTRates(sel Selection, matched MatchedItem) (cgst, sgst, igst, total float64) {
	switch matched.GSTType {
	case oms.GSTTypeCGSTSGST:
		cgst = componentRate(sel.CGSTRate, matched.OrderItem, "cgst")
		sgst = componentRate(sel.SGSTRate, matched.OrderItem, "sgst")
		total = cgst + sgst
	case oms.GSTTypeIGST:
		igst = componentRate(sel.GSTRate, matched.OrderItem, "igst")
		if igst == 0 && sel.GSTRate == nil && len(matched.TaxRates) > 0 {
			igst = matched.TaxRates[0]
		}
		total = igst
	}
	return cgst, sgst, igst, total
}

func componentRate(override *float64, item map[string]any, name string) float64 {
	if override != nil {
		return *override
	}
	if rate, ok := oms.TaxComponentRate(item, name); ok {
		return rate
	}
	return 0
}

// computeAmount is quantity x rate x (1 + gst/100), rounded to paise.
// decimal arithmetic keeps 0.1-style float noise out of stored money.
func computeAmount(quantity, unitRate, gstRate float64) decimal.Decimal {
	qty := decimal.NewFromFloat(quantity)
	rate := decimal.NewFromFloat(unitRate)
	gst := decimal.NewFromFloat(gstRate).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1))
	return qty.Mul(rate).Mul(gst).Round(2)
}

func itemName(m MatchedItem) string {
	if name := m.BillItem.Name(); name != "" {
		return name
	}
	if m.ItemName != "" {
		return m.ItemName
	}
	return oms.ItemName(m.OrderItem)
}

func itemHSN(m MatchedItem) string {
	if code := m.BillItem.HSNSAC(); code != "" {
		return code
	}
	if m.HSN != "" {
		return m.HSN
	}
	return oms.HSNCode(m.OrderItem)
}

func itemUnit(m MatchedItem) string {
	if s, ok := m.BillItem["unit"].(string); ok {
		return s
	}
	if m.Unit != "" {
		return m.Unit
	}
	return oms.Unit(m.OrderItem)
}
