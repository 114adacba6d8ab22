package match

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"bills-backend/internal/extract"
)

type fakeCompleter struct {
	response string
	err      error
	lastUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, maxTokens int) (json.RawMessage, error) {
	f.lastUser = user
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func billItems(names ...string) []extract.Item {
	items := make([]extract.Item, 0, len(names))
	for i, n := range names {
		items = append(items, extract.Item{"billId": "b" + string(rune('0'+i)), "name": n})
	}
	return items
}

func orderItems(names ...string) []map[string]any {
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]any{"name": n})
	}
	return out
}

func TestMatchHappyPath(t *testing.T) {
	fake := &fakeCompleter{response: `{"matches":[{"billId":"b0","poId":"p1"},{"billId":"b1","poId":"p0"}],"unmatched":["b2"]}`}
	eng := NewEngine(fake)

	res, err := eng.Match(context.Background(),
		billItems("cement", "steel", "paint"),
		orderItems("steel rods", "cement opc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("matches = %+v", res.Matches)
	}
	if res.Matches[0] != (Pair{BillIndex: 0, OrderIndex: 1}) || res.Matches[1] != (Pair{BillIndex: 1, OrderIndex: 0}) {
		t.Fatalf("matches = %+v", res.Matches)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != 2 {
		t.Fatalf("unmatched = %+v", res.Unmatched)
	}
}

func TestMatchEveryBillItemAccountedFor(t *testing.T) {
	// Model forgets b1 and b2 entirely; they must surface as unmatched.
	fake := &fakeCompleter{response: `{"matches":[{"billId":"b0","poId":"p0"}],"unmatched":[]}`}
	eng := NewEngine(fake)

	res, err := eng.Match(context.Background(),
		billItems("a", "b", "c"), orderItems("x", "y"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Unmatched) != 2 || res.Unmatched[0] != 1 || res.Unmatched[1] != 2 {
		t.Fatalf("unmatched = %+v", res.Unmatched)
	}
}

func TestMatchDuplicateOrderClaimDropped(t *testing.T) {
	// Two bill items claim p0; the second claim loses and b1 falls back
	// to unmatched.
	fake := &fakeCompleter{response: `{"matches":[{"billId":"b0","poId":"p0"},{"billId":"b1","poId":"p0"}],"unmatched":[]}`}
	eng := NewEngine(fake)

	res, err := eng.Match(context.Background(), billItems("a", "b"), orderItems("x"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 || res.Matches[0] != (Pair{BillIndex: 0, OrderIndex: 0}) {
		t.Fatalf("matches = %+v", res.Matches)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != 1 {
		t.Fatalf("unmatched = %+v", res.Unmatched)
	}
}

func TestMatchDuplicateBillClaimDropped(t *testing.T) {
	fake := &fakeCompleter{response: `{"matches":[{"billId":"b0","poId":"p0"},{"billId":"b0","poId":"p1"}],"unmatched":[]}`}
	eng := NewEngine(fake)

	res, err := eng.Match(context.Background(), billItems("a"), orderItems("x", "y"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 1 || len(res.Unmatched) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestMatchUnresolvedIDsDropped(t *testing.T) {
	fake := &fakeCompleter{response: `{"matches":[{"billId":"b9","poId":"p0"},{"billId":"b0","poId":"zebra"}],"unmatched":["b5","b1"]}`}
	eng := NewEngine(fake)

	res, err := eng.Match(context.Background(), billItems("a", "b"), orderItems("x"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 {
		t.Fatalf("matches = %+v", res.Matches)
	}
	// b5 was unresolvable; b0 and b1 both end up unmatched.
	if len(res.Unmatched) != 2 || res.Unmatched[0] != 0 || res.Unmatched[1] != 1 {
		t.Fatalf("unmatched = %+v", res.Unmatched)
	}
}

func TestMatchMissingFieldIsError(t *testing.T) {
	for _, resp := range []string{
		`{"matches":[]}`,
		`{"unmatched":[]}`,
		`{}`,
	} {
		fake := &fakeCompleter{response: resp}
		eng := NewEngine(fake)
		if _, err := eng.Match(context.Background(), billItems("a"), orderItems("x")); err == nil {
			t.Errorf("response %s: expected error", resp)
		}
	}
}

func TestMatchMalformedJSONIsError(t *testing.T) {
	fake := &fakeCompleter{response: `not json at all`}
	eng := NewEngine(fake)
	if _, err := eng.Match(context.Background(), billItems("a"), orderItems("x")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMatchCompleterFailure(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("upstream down")}
	eng := NewEngine(fake)
	if _, err := eng.Match(context.Background(), billItems("a"), orderItems("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestMatchNoOrderItems(t *testing.T) {
	fake := &fakeCompleter{}
	eng := NewEngine(fake)
	res, err := eng.Match(context.Background(), billItems("a", "b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 0 || len(res.Unmatched) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if fake.lastUser != "" {
		t.Fatal("model should not be called with no order items")
	}
}

func TestMatchNoBillItemsIsError(t *testing.T) {
	eng := NewEngine(&fakeCompleter{})
	if _, err := eng.Match(context.Background(), nil, orderItems("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestMatchPromptContainsProtocolIDs(t *testing.T) {
	fake := &fakeCompleter{response: `{"matches":[],"unmatched":["b0"]}`}
	eng := NewEngine(fake)
	if _, err := eng.Match(context.Background(), billItems("cement"), orderItems("cement opc")); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"billId": "b0"`, `"poId": "p0"`} {
		if !strings.Contains(fake.lastUser, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
