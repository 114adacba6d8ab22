package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateBill inserts a draft bill header.
func (r *PGRepo) CreateBill(ctx context.Context, bill Bill) error {
	const query = `
INSERT INTO draft_bills (
    id,
    document_id,
    user_id,
    job_id,
    po_number,
    order_id,
    order_number,
    gst_type,
    total_amount,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	createdAt := bill.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		bill.ID,
		bill.DocumentID,
		bill.UserID,
		bill.JobID,
		bill.PONumber,
		bill.OrderID,
		bill.OrderNumber,
		bill.GSTType,
		bill.TotalAmount,
		createdAt,
	)
	return err
}

// CreateItems inserts the bill's line items.
func (r *PGRepo) CreateItems(ctx context.Context, items []Item) error {
	const query = `
INSERT INTO draft_items (
    id,
    bill_id,
    name,
    master_item_name,
    item_code,
    hsn_sac,
    quantity,
    total_quantity,
    billable_quantity,
    unit,
    unit_rate,
    gst_type,
    cgst_rate,
    sgst_rate,
    igst_rate,
    gst_rate,
    amount,
    bill_item,
    order_item,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	for _, item := range items {
		billItem, err := marshalJSON(item.BillItem)
		if err != nil {
			return err
		}
		orderItem, err := marshalJSON(item.OrderItem)
		if err != nil {
			return err
		}
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := r.DB.ExecContext(
			ctx,
			query,
			item.ID,
			item.BillID,
			item.Name,
			item.MasterName,
			item.ItemCode,
			item.HSNSAC,
			item.Quantity,
			item.TotalQty,
			item.BillableQty,
			item.Unit,
			item.UnitRate,
			item.GSTType,
			item.CGSTRate,
			item.SGSTRate,
			item.IGSTRate,
			item.GSTRate,
			item.Amount,
			billItem,
			orderItem,
			createdAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBill removes a bill header; draft_items cascade.
func (r *PGRepo) DeleteBill(ctx context.Context, billID string) error {
	const query = `DELETE FROM draft_bills WHERE id = $1`
	_, err := r.DB.ExecContext(ctx, query, billID)
	return err
}

const billColumns = `id, document_id, user_id, job_id, po_number, order_id, order_number, gst_type, total_amount, created_at`

// GetBillByDocument returns the draft bill for a document, owner-scoped.
func (r *PGRepo) GetBillByDocument(ctx context.Context, userID, documentID string) (Bill, error) {
	const query = `
SELECT ` + billColumns + `
FROM draft_bills
WHERE document_id = $1 AND user_id = $2`
	bill, err := scanBill(r.DB.QueryRowContext(ctx, query, documentID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bill{}, ErrNotFound
		}
		return Bill{}, err
	}
	return bill, nil
}

// ListBills returns the user's draft bills, newest first, with item counts.
func (r *PGRepo) ListBills(ctx context.Context, userID string) ([]BillSummary, error) {
	const query = `
SELECT b.id, b.document_id, b.user_id, b.job_id, b.po_number, b.order_id, b.order_number, b.gst_type, b.total_amount, b.created_at,
       COUNT(i.id) AS item_count
FROM draft_bills b
LEFT JOIN draft_items i ON i.bill_id = b.id
WHERE b.user_id = $1
GROUP BY b.id
ORDER BY b.created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillSummary
	for rows.Next() {
		var s BillSummary
		err := rows.Scan(
			&s.ID,
			&s.DocumentID,
			&s.UserID,
			&s.JobID,
			&s.PONumber,
			&s.OrderID,
			&s.OrderNumber,
			&s.GSTType,
			&s.TotalAmount,
			&s.CreatedAt,
			&s.ItemCount,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListItems returns a bill's line items in insertion order.
func (r *PGRepo) ListItems(ctx context.Context, billID string) ([]Item, error) {
	const query = `
SELECT id, bill_id, name, master_item_name, item_code, hsn_sac, quantity, total_quantity, billable_quantity,
       unit, unit_rate, gst_type, cgst_rate, sgst_rate, igst_rate, gst_rate, amount, bill_item, order_item, created_at
FROM draft_items
WHERE bill_id = $1
ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		var billItem, orderItem []byte
		err := rows.Scan(
			&item.ID,
			&item.BillID,
			&item.Name,
			&item.MasterName,
			&item.ItemCode,
			&item.HSNSAC,
			&item.Quantity,
			&item.TotalQty,
			&item.BillableQty,
			&item.Unit,
			&item.UnitRate,
			&item.GSTType,
			&item.CGSTRate,
			&item.SGSTRate,
			&item.IGSTRate,
			&item.GSTRate,
			&item.Amount,
			&billItem,
			&orderItem,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(billItem) > 0 {
			if err := json.Unmarshal(billItem, &item.BillItem); err != nil {
				return nil, err
			}
		}
		if len(orderItem) > 0 {
			if err := json.Unmarshal(orderItem, &item.OrderItem); err != nil {
				return nil, err
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (Bill, error) {
	var bill Bill
	err := row.Scan(
		&bill.ID,
		&bill.DocumentID,
		&bill.UserID,
		&bill.JobID,
		&bill.PONumber,
		&bill.OrderID,
		&bill.OrderNumber,
		&bill.GSTType,
		&bill.TotalAmount,
		&bill.CreatedAt,
	)
	return bill, err
}

func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
