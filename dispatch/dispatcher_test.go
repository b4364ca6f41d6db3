package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/marshal"
	"github.com/cider/chainrpc/wire"
)

type testCounter struct {
	value int64
}

func (c *testCounter) Increment(by int64) int64 {
	c.value += by
	return c.value
}

func (c *testCounter) Value() int64 { return c.value }

func (c *testCounter) Sum(a, b int64) int64 { return a + b }

func (c *testCounter) Reset(floor int64) (int64, error) {
	if floor < 0 {
		return 0, fmt.Errorf("floor must be non-negative")
	}
	c.value = floor
	return c.value, nil
}

func chainOf(ops ...chain.Operation) chain.Chain {
	c := chain.Chain{}
	for _, op := range ops {
		c = c.Extend(op)
	}
	return c
}

func TestExecuteBatchPlainMethodCall(t *testing.T) {
	host := &testCounter{}
	d := New(host, DefaultConfig())

	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(
			chain.GetOp(chain.StringKey("increment")),
			chain.ApplyOp([]any{int64(5)}),
		)},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	if len(resp.Batch) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Batch))
	}
	r := resp.Batch[0]
	if !r.Success {
		t.Fatalf("expected success, got error: %+v", r.Err)
	}
	if r.Value != int64(5) {
		t.Fatalf("expected value 5, got %v", r.Value)
	}
}

func TestExecuteBatchSequentialOrdering(t *testing.T) {
	host := &testCounter{}
	d := New(host, DefaultConfig())

	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(chain.GetOp(chain.StringKey("increment")), chain.ApplyOp([]any{int64(1)}))},
		{ID: "b", Operations: chainOf(chain.GetOp(chain.StringKey("increment")), chain.ApplyOp([]any{int64(1)}))},
		{ID: "c", Operations: chainOf(chain.GetOp(chain.StringKey("value")), chain.ApplyOp(nil))},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	if resp.Batch[2].Value != int64(2) {
		t.Fatalf("expected cumulative value 2 after two increments, got %v", resp.Batch[2].Value)
	}
}

func TestExecuteBatchHostThrownError(t *testing.T) {
	host := &testCounter{}
	d := New(host, DefaultConfig())

	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(chain.GetOp(chain.StringKey("reset")), chain.ApplyOp([]any{int64(-1)}))},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	r := resp.Batch[0]
	if r.Success {
		t.Fatal("expected failure for negative reset floor")
	}
	ev, ok := r.Err.(*wire.ErrorValue)
	if !ok {
		t.Fatalf("expected *wire.ErrorValue, got %T", r.Err)
	}
	if ev.Message == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestExecuteBatchNestedOperationAliasing(t *testing.T) {
	host := &testCounter{}
	d := New(host, DefaultConfig())

	// Definer: the chain for "value" itself, cached under refId "r1".
	definer := wire.NestedOperationMarker{
		IsNestedOperation: true,
		RefID:             "r1",
		OperationChain:    chainOf(chain.GetOp(chain.StringKey("value")), chain.ApplyOp(nil)),
	}
	alias := wire.NestedOperationMarker{IsNestedOperation: true, RefID: "r1"}

	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(
			chain.GetOp(chain.StringKey("sum")),
			chain.ApplyOp([]any{definer, alias}),
		)},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	r := resp.Batch[0]
	if !r.Success {
		t.Fatalf("expected success, got %+v", r.Err)
	}
	// sum(0, 0): the counter starts at 0, and definer and alias both
	// resolve to that same value.
	if r.Value != int64(0) {
		t.Fatalf("expected 0, got %v", r.Value)
	}
}

func TestExecuteBatchAliasBeforeDefinerFails(t *testing.T) {
	host := &testCounter{}
	d := New(host, DefaultConfig())

	alias := wire.NestedOperationMarker{IsNestedOperation: true, RefID: "missing"}
	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(
			chain.GetOp(chain.StringKey("increment")),
			chain.ApplyOp([]any{alias}),
		)},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	if resp.Batch[0].Success {
		t.Fatal("expected failure for an alias with no definer in the batch")
	}
}

func TestExecuteBatchMaxDepthValidation(t *testing.T) {
	host := &testCounter{}
	d := New(host, Config{MaxDepth: 1, MaxArgs: 100})

	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(
			chain.GetOp(chain.StringKey("increment")),
			chain.ApplyOp([]any{int64(1)}),
		)},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	if resp.Batch[0].Success {
		t.Fatal("expected depth-limit validation to fail a 2-operation chain with maxDepth=1")
	}
}

func TestExecuteBatchDepthBoundary(t *testing.T) {
	host := &testCounter{}
	d := New(host, Config{MaxDepth: 2, MaxArgs: 100})

	// A chain of exactly maxDepth operations succeeds.
	ok := wire.Item{ID: "ok", Operations: chainOf(
		chain.GetOp(chain.StringKey("increment")),
		chain.ApplyOp([]any{int64(1)}),
	)}
	// One operation more fails validation before touching the host.
	tooDeep := wire.Item{ID: "deep", Operations: chainOf(
		chain.GetOp(chain.StringKey("stats")),
		chain.GetOp(chain.StringKey("increment")),
		chain.ApplyOp([]any{int64(1)}),
	)}

	resp := d.ExecuteBatch(context.Background(), wire.BatchRequest{Batch: []wire.Item{ok, tooDeep}})
	if !resp.Batch[0].Success {
		t.Fatalf("chain of exactly maxDepth must succeed, got %+v", resp.Batch[0].Err)
	}
	if resp.Batch[1].Success {
		t.Fatal("chain of maxDepth+1 must fail validation")
	}
	if host.value != 1 {
		t.Fatalf("the valid sibling must still have run, counter is %d", host.value)
	}
}

func TestExecuteBatchMaxArgsBoundary(t *testing.T) {
	host := &testCounter{}
	d := New(host, Config{MaxDepth: 50, MaxArgs: 2})

	ok := wire.Item{ID: "ok", Operations: chainOf(
		chain.GetOp(chain.StringKey("sum")),
		chain.ApplyOp([]any{int64(2), int64(3)}),
	)}
	tooMany := wire.Item{ID: "over", Operations: chainOf(
		chain.GetOp(chain.StringKey("sum")),
		chain.ApplyOp([]any{int64(1), int64(2), int64(3)}),
	)}

	resp := d.ExecuteBatch(context.Background(), wire.BatchRequest{Batch: []wire.Item{ok, tooMany}})
	if !resp.Batch[0].Success {
		t.Fatalf("apply with exactly maxArgs arguments must succeed, got %+v", resp.Batch[0].Err)
	}
	if resp.Batch[0].Value != int64(5) {
		t.Fatalf("expected 5, got %v", resp.Batch[0].Value)
	}
	if resp.Batch[1].Success {
		t.Fatal("apply with maxArgs+1 arguments must fail validation")
	}
}

func TestExecuteBatchTraversalErrorNamesKey(t *testing.T) {
	host := &testCounter{}
	d := New(host, DefaultConfig())

	req := wire.BatchRequest{Batch: []wire.Item{
		{ID: "a", Operations: chainOf(
			chain.GetOp(chain.StringKey("missing")),
			chain.GetOp(chain.StringKey("deeper")),
		)},
	}}

	resp := d.ExecuteBatch(context.Background(), req)
	r := resp.Batch[0]
	if r.Success {
		t.Fatal("expected a traversal failure for a missing member")
	}
	ev, ok := r.Err.(*wire.ErrorValue)
	if !ok {
		t.Fatalf("expected *wire.ErrorValue, got %T", r.Err)
	}
	if !strings.Contains(ev.Message, "missing") {
		t.Fatalf("expected the error message to name the offending key, got %q", ev.Message)
	}
	if ev.Name != "TypeError" {
		t.Fatalf("expected a TypeError-named traversal error, got %q", ev.Name)
	}
}

func TestPreprocessWrapsMethodsAsMarkers(t *testing.T) {
	host := &testCounter{}
	val := host
	preprocessed := marshal.Preprocess(val, chain.Chain{})
	m, ok := preprocessed.(map[string]any)
	if !ok {
		t.Fatalf("expected preprocessed struct to become a map, got %T", preprocessed)
	}
	if _, ok := m["Increment"]; !ok {
		t.Fatalf("expected Increment method to be surfaced as a marker, got keys %v", keysOf(m))
	}
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
