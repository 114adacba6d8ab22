package drafts

import "context"

// Repo defines persistence operations for draft bills.
type Repo interface {
	CreateBill(ctx context.Context, bill Bill) error
	CreateItems(ctx context.Context, items []Item) error
	// DeleteBill removes a bill header (and its items via cascade). Used
	// to compensate when the items insert fails. Deleting a missing bill
	// is not an error.
	DeleteBill(ctx context.Context, billID string) error
	GetBillByDocument(ctx context.Context, userID, documentID string) (Bill, error)
	ListBills(ctx context.Context, userID string) ([]BillSummary, error)
	ListItems(ctx context.Context, billID string) ([]Item, error)
}
