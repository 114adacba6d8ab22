// Package match pairs extracted bill line items with purchase-order line
// items using an LLM completion, then enforces the pairing invariants on
// whatever the model returns.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bills-backend/internal/extract"
	"bills-backend/internal/shared/telemetry"
)

// matchMaxTokens bounds the matcher completion.
const matchMaxTokens = 2000

// Completer is the slice of the LLM client the engine needs.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (json.RawMessage, error)
}

// Pair links one bill item to one order item by positional index.
type Pair struct {
	BillIndex  int
	OrderIndex int
}

// Result is a validated pairing: every bill index appears exactly once
// across Matches and Unmatched, and no order index appears twice.
type Result struct {
	Matches   []Pair
	Unmatched []int
}

// Engine is stateless; one instance serves all requests.
type Engine struct {
	llm Completer
}

func NewEngine(llm Completer) *Engine {
	return &Engine{llm: llm}
}

// protocol types for the model exchange. Pointer slices distinguish a
// missing field from an empty one; a missing field is a hard failure.
type matchRef struct {
	BillID string `json:"billId"`
	POID   string `json:"poId"`
}

type matchResponse struct {
	Matches   *[]matchRef `json:"matches"`
	Unmatched *[]string   `json:"unmatched"`
}

// Match pairs billItems against orderItems. The model sees compact
// relabeled views (billId "b<i>", poId "p<i>") so the prompt stays small
// and the response maps back positionally.
func (e *Engine) Match(ctx context.Context, billItems []extract.Item, orderItems []map[string]any) (Result, error) {
	if len(billItems) == 0 {
		return Result{}, fmt.Errorf("no bill items to match")
	}
	if len(orderItems) == 0 {
		// Nothing to match against; everything is unmatched.
		res := Result{}
		for i := range billItems {
			res.Unmatched = append(res.Unmatched, i)
		}
		return res, nil
	}

	prompt, err := buildMatchPrompt(billItems, orderItems)
	if err != nil {
		return Result{}, err
	}
	raw, err := e.llm.Complete(ctx, matchSystemPrompt, prompt, matchMaxTokens)
	if err != nil {
		return Result{}, fmt.Errorf("match completion: %w", err)
	}

	var resp matchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("match response parse: %w", err)
	}
	if resp.Matches == nil || resp.Unmatched == nil {
		return Result{}, fmt.Errorf("match response missing matches or unmatched field")
	}

	return e.resolve(len(billItems), len(orderItems), *resp.Matches, *resp.Unmatched), nil
}

// resolve translates protocol ids back to indices and enforces the
// invariants regardless of what the model produced: unresolved ids are
// dropped, duplicate claims lose to the first occurrence, and any bill
// item the model forgot lands in Unmatched.
func (e *Engine) resolve(billCount, orderCount int, matches []matchRef, unmatched []string) Result {
	billSeen := make(map[int]bool, billCount)
	orderSeen := make(map[int]bool, orderCount)
	res := Result{}

	for _, m := range matches {
		bi, ok := parseProtocolID(m.BillID, "b", billCount)
		if !ok {
			telemetry.Info("match.unresolved_id", map[string]any{"billId": m.BillID, "poId": m.POID})
			continue
		}
		oi, ok := parseProtocolID(m.POID, "p", orderCount)
		if !ok {
			telemetry.Info("match.unresolved_id", map[string]any{"billId": m.BillID, "poId": m.POID})
			continue
		}
		if billSeen[bi] || orderSeen[oi] {
			telemetry.Info("match.duplicate_claim", map[string]any{"billIndex": bi, "orderIndex": oi})
			continue
		}
		billSeen[bi] = true
		orderSeen[oi] = true
		res.Matches = append(res.Matches, Pair{BillIndex: bi, OrderIndex: oi})
	}

	for _, id := range unmatched {
		bi, ok := parseProtocolID(id, "b", billCount)
		if !ok {
			telemetry.Info("match.unresolved_id", map[string]any{"billId": id})
			continue
		}
		if billSeen[bi] {
			continue
		}
		billSeen[bi] = true
		res.Unmatched = append(res.Unmatched, bi)
	}

	// Bill items the model never mentioned count as unmatched.
	for i := 0; i < billCount; i++ {
		if !billSeen[i] {
			res.Unmatched = append(res.Unmatched, i)
		}
	}
	sort.Ints(res.Unmatched)
	return res
}

// parseProtocolID parses "b3" / "p12" style ids within [0, count).
func parseProtocolID(id, prefix string, count int) (int, bool) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(id[len(prefix):])
	if err != nil || n < 0 || n >= count {
		return 0, false
	}
	return n, true
}
