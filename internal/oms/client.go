// Package oms talks to the upstream order-management service and knows
// how to dig line items and tax details out of its loosely shaped
// responses.
package oms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned when no order matches the PO number.
var ErrOrderNotFound = errors.New("order not found")

// ErrUpstream marks transport or server-side failures of the order
// service, as opposed to an order simply not existing.
var ErrUpstream = errors.New("order service unavailable")

// OrderSummary is the slice of a search hit the workflow needs, plus the
// raw document for session storage.
type OrderSummary struct {
	ID           string
	OrderNumber  string
	SupplierName string
	Raw          map[string]any
}

// Client resolves purchase orders against the order service.
type Client interface {
	// OrderByPONumber searches for an order whose number matches poNumber
	// and returns the first hit.
	OrderByPONumber(ctx context.Context, poNumber string) (OrderSummary, error)
	// OrderDetail fetches the full order document by id.
	OrderDetail(ctx context.Context, orderID string) (map[string]any, error)
}

// HTTPClient implements Client over the order service's REST API.
type HTTPClient struct {
	baseURL     string
	authToken   string
	tenantID    string
	companySlug string
	httpClient  *http.Client
}

// NewHTTPClient constructs an order-service client.
func NewHTTPClient(baseURL, authToken, tenantID, companySlug string) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("OMS_BASE_URL is required")
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		authToken:   authToken,
		tenantID:    tenantID,
		companySlug: companySlug,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// envelope is the generic response wrapper the order service uses.
type envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *HTTPClient) OrderByPONumber(ctx context.Context, poNumber string) (OrderSummary, error) {
	endpoint := fmt.Sprintf("%s/orders/order-list/order-listV2?pageNumber=1&searchText=%s",
		c.baseURL, url.QueryEscape(strings.TrimSpace(poNumber)))

	var env envelope
	if err := c.get(ctx, endpoint, &env); err != nil {
		return OrderSummary{}, err
	}

	var data struct {
		AllDocuments []map[string]any `json:"allDocuments"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return OrderSummary{}, fmt.Errorf("order search decode: %w", err)
		}
	}
	if len(data.AllDocuments) == 0 {
		return OrderSummary{}, fmt.Errorf("%w: po number %q", ErrOrderNotFound, poNumber)
	}

	doc := data.AllDocuments[0]
	return OrderSummary{
		ID:           firstString(doc, "_id", "id"),
		OrderNumber:  firstString(doc, "orderNumber", "order_number"),
		SupplierName: firstString(doc, "supplierName", "supplier_name"),
		Raw:          doc,
	}, nil
}

func (c *HTTPClient) OrderDetail(ctx context.Context, orderID string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(orderID))

	var env envelope
	if err := c.get(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("order detail empty for %s", orderID)
	}

	var detail map[string]any
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		return nil, fmt.Errorf("order detail decode: %w", err)
	}
	// Some deployments wrap the document in one more "data" envelope.
	if inner, ok := detail["data"].(map[string]any); ok && len(detail) == 1 {
		detail = inner
	}
	return detail, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, out *envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("authorizationtoken", c.authToken)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.tenantID != "" {
		req.Header.Set("x-tenant-id", c.tenantID)
	}
	if c.companySlug != "" {
		req.Header.Set("X-COMPANY-SLUG", c.companySlug)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("order service decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

var _ Client = (*HTTPClient)(nil)

// PlaceholderClient stands in when no order service is configured.
type PlaceholderClient struct{}

func (PlaceholderClient) OrderByPONumber(ctx context.Context, poNumber string) (OrderSummary, error) {
	return OrderSummary{}, fmt.Errorf("%w: order service not configured", ErrUpstream)
}

func (PlaceholderClient) OrderDetail(ctx context.Context, orderID string) (map[string]any, error) {
	return nil, fmt.Errorf("%w: order service not configured", ErrUpstream)
}

var _ Client = PlaceholderClient{}
