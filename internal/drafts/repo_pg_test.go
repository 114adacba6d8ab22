package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"bills-backend/internal/extract"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateBill(t *testing.T) {
	repo, mock := newMockRepo(t)

	bill := Bill{
		ID:          "bill-1",
		DocumentID:  "doc-1",
		UserID:      "user-1",
		JobID:       "job-1",
		PONumber:    "PO-1",
		OrderID:     "ord-1",
		OrderNumber: "ON-9",
		GSTType:     "CGST-SGST",
		TotalAmount: decimal.NewFromInt(236),
	}

	mock.ExpectExec("INSERT INTO draft_bills").
		WithArgs(
			bill.ID,
			bill.DocumentID,
			bill.UserID,
			bill.JobID,
			bill.PONumber,
			bill.OrderID,
			bill.OrderNumber,
			bill.GSTType,
			bill.TotalAmount,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.CreateBill(context.Background(), bill); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateItemsInsertsEachRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	items := []Item{
		{
			ID:          "item-1",
			BillID:      "bill-1",
			Name:        "Cement",
			MasterName:  "Cement OPC 53 Grade",
			ItemCode:    "CEM-53",
			HSNSAC:      "2523",
			Quantity:    decimal.NewFromInt(2),
			TotalQty:    decimal.NewFromInt(25),
			BillableQty: decimal.NewFromInt(10),
			Unit:        "bags",
			UnitRate:    decimal.NewFromInt(100),
			GSTType:     "CGST-SGST",
			CGSTRate:    decimal.NewFromInt(9),
			SGSTRate:    decimal.NewFromInt(9),
			GSTRate:     decimal.NewFromInt(18),
			Amount:      decimal.NewFromInt(236),
			BillItem:    extract.Item{"billId": "b0", "name": "Cement"},
			OrderItem: map[string]any{
				"name": "Cement", "unitRate": 100,
			},
		},
		{
			ID:       "item-2",
			BillID:   "bill-1",
			Name:     "Sand",
			Quantity: decimal.NewFromInt(1),
			UnitRate: decimal.NewFromInt(50),
			GSTRate:  decimal.NewFromInt(18),
			Amount:   decimal.NewFromInt(59),
		},
	}

	for _, item := range items {
		mock.ExpectExec("INSERT INTO draft_items").
			WithArgs(
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
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	if err := repo.CreateItems(context.Background(), items); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateItemsStopsOnFirstFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	items := []Item{
		{ID: "item-1", BillID: "bill-1", Name: "Cement"},
		{ID: "item-2", BillID: "bill-1", Name: "Sand"},
	}

	boom := errors.New("insert failed")
	mock.ExpectExec("INSERT INTO draft_items").
		WillReturnError(boom)

	err := repo.CreateItems(context.Background(), items)
	if !errors.Is(err, boom) {
		t.Fatalf("CreateItems error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteBill(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM draft_bills").
		WithArgs("bill-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteBill(context.Background(), "bill-1"); err != nil {
		t.Fatalf("DeleteBill: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetBillByDocumentNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM draft_bills").
		WithArgs("doc-x", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "document_id", "user_id", "job_id", "po_number",
			"order_id", "order_number", "gst_type", "total_amount", "created_at",
		}))

	_, err := repo.GetBillByDocument(context.Background(), "user-1", "doc-x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBillByDocument error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetBillByDocumentScansBill(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("FROM draft_bills").
		WithArgs("doc-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "document_id", "user_id", "job_id", "po_number",
			"order_id", "order_number", "gst_type", "total_amount", "created_at",
		}).AddRow(
			"bill-1", "doc-1", "user-1", "job-1", "PO-1",
			"ord-1", "ON-9", "CGST-SGST", "236", created,
		))

	bill, err := repo.GetBillByDocument(context.Background(), "user-1", "doc-1")
	if err != nil {
		t.Fatalf("GetBillByDocument: %v", err)
	}
	if bill.ID != "bill-1" || bill.PONumber != "PO-1" {
		t.Fatalf("unexpected bill: %+v", bill)
	}
	if !bill.TotalAmount.Equal(decimal.NewFromInt(236)) {
		t.Fatalf("TotalAmount = %s, want 236", bill.TotalAmount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListBillsCountsItems(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("LEFT JOIN draft_items").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "document_id", "user_id", "job_id", "po_number",
			"order_id", "order_number", "gst_type", "total_amount", "created_at",
			"item_count",
		}).AddRow(
			"bill-2", "doc-2", "user-1", "job-2", "PO-2",
			"ord-2", "ON-2", "", "59", created,
			1,
		).AddRow(
			"bill-1", "doc-1", "user-1", "job-1", "PO-1",
			"ord-1", "ON-9", "CGST-SGST", "236", created.Add(-time.Hour),
			3,
		))

	bills, err := repo.ListBills(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListBills: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("len(bills) = %d, want 2", len(bills))
	}
	if bills[0].ID != "bill-2" || bills[0].ItemCount != 1 {
		t.Fatalf("unexpected first bill: %+v", bills[0])
	}
	if bills[1].ItemCount != 3 {
		t.Fatalf("ItemCount = %d, want 3", bills[1].ItemCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListItemsDecodesJSON(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("FROM draft_items").
		WithArgs("bill-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "bill_id", "name", "master_item_name", "item_code", "hsn_sac",
			"quantity", "total_quantity", "billable_quantity", "unit", "unit_rate",
			"gst_type", "cgst_rate", "sgst_rate", "igst_rate", "gst_rate", "amount",
			"bill_item", "order_item", "created_at",
		}).AddRow(
			"item-1", "bill-1", "Cement", "Cement OPC 53 Grade", "CEM-53", "2523",
			"2", "25", "10", "bags", "100",
			"CGST-SGST", "9", "9", "0", "18", "236",
			[]byte(`{"billId":"b0","name":"Cement"}`),
			[]byte(`{"name":"Cement"}`),
			created,
		).AddRow(
			"item-2", "bill-1", "Sand", "", "", "",
			"1", "0", "0", "", "50",
			"", "0", "0", "0", "18", "59",
			nil,
			nil,
			created,
		))

	items, err := repo.ListItems(context.Background(), "bill-1")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if got := items[0].BillItem.Name(); got != "Cement" {
		t.Fatalf("BillItem.Name() = %q, want %q", got, "Cement")
	}
	if got := items[0].BillItem.BillID(); got != "b0" {
		t.Fatalf("BillItem.BillID() = %q, want %q", got, "b0")
	}
	if items[0].OrderItem["name"] != "Cement" {
		t.Fatalf("OrderItem = %+v", items[0].OrderItem)
	}
	if items[0].MasterName != "Cement OPC 53 Grade" || items[0].GSTType != "CGST-SGST" {
		t.Fatalf("item = %+v", items[0])
	}
	if !items[0].CGSTRate.Equal(decimal.NewFromInt(9)) || !items[0].SGSTRate.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("component rates = %s / %s", items[0].CGSTRate, items[0].SGSTRate)
	}
	if items[1].BillItem != nil || items[1].OrderItem != nil {
		t.Fatalf("expected empty JSON columns to stay nil: %+v", items[1])
	}
	if !items[1].Amount.Equal(decimal.NewFromInt(59)) {
		t.Fatalf("Amount = %s, want 59", items[1].Amount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
