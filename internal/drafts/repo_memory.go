package drafts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is the in-memory Repo used in dev and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	bills map[string]Bill
	items map[string][]Item // keyed by bill id

	// FailItems forces CreateItems to fail, for compensation tests.
	FailItems error
}

// NewMemoryRepo creates an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		bills: make(map[string]Bill),
		items: make(map[string][]Item),
	}
}

func (r *MemoryRepo) CreateBill(ctx context.Context, bill Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	r.bills[bill.ID] = bill
	return nil
}

func (r *MemoryRepo) CreateItems(ctx context.Context, items []Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.FailItems != nil {
		return r.FailItems
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		r.items[item.BillID] = append(r.items[item.BillID], item)
	}
	return nil
}

func (r *MemoryRepo) DeleteBill(ctx context.Context, billID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bills, billID)
	delete(r.items, billID)
	return nil
}

func (r *MemoryRepo) GetBillByDocument(ctx context.Context, userID, documentID string) (Bill, error) {
	if err := ctx.Err(); err != nil {
		return Bill{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, bill := range r.bills {
		if bill.DocumentID == documentID && bill.UserID == userID {
			return bill, nil
		}
	}
	return Bill{}, ErrNotFound
}

func (r *MemoryRepo) ListBills(ctx context.Context, userID string) ([]BillSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []BillSummary
	for _, bill := range r.bills {
		if bill.UserID != userID {
			continue
		}
		out = append(out, BillSummary{Bill: bill, ItemCount: len(r.items[bill.ID])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ListItems(ctx context.Context, billID string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Item, len(r.items[billID]))
	copy(items, r.items[billID])
	return items, nil
}

var _ Repo = (*MemoryRepo)(nil)
