package client

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/dispatch"
	"github.com/cider/chainrpc/wire"
)

// scenarioHost is the demo-shaped host the end-to-end scenarios run
// against: a counter, an adder, an object with nested callable members,
// and a method that throws an error carrying its own fields.
type scenarioHost struct {
	value int64
}

func (h *scenarioHost) Increment() int64 {
	h.value++
	return h.value
}

func (h *scenarioHost) Add(x, y int64) int64 { return x + y }

func (h *scenarioHost) GetObject() *scenarioObject {
	o := &scenarioObject{Value: 42}
	o.Nested = &scenarioNested{parent: o}
	return o
}

func (h *scenarioHost) Cycle() map[string]any {
	m := map[string]any{"tag": "cyclic"}
	m["self"] = m
	return m
}

func (h *scenarioHost) ThrowIt() error {
	return chainerr.NewHostThrown("ValidationError", "bad", map[string]any{"field": "email"}, nil)
}

type scenarioObject struct {
	Value  int64
	Nested *scenarioNested
}

func (o *scenarioObject) Val() int64 { return o.Value }

type scenarioNested struct {
	parent *scenarioObject
}

func (n *scenarioNested) GetValue() int64 { return n.parent.Value }

// countingTransport wraps inProcessTransport and counts Execute calls so
// scenarios can assert exactly how many round trips a sequence produced.
type countingTransport struct {
	inProcessTransport
	executes int
}

func (t *countingTransport) Execute(ctx context.Context, req wire.BatchRequest) (wire.BatchResponse, error) {
	t.executes++
	return t.inProcessTransport.Execute(ctx, req)
}

func newScenarioClient(host any) (*Client, *countingTransport) {
	tr := &countingTransport{inProcessTransport: inProcessTransport{d: dispatch.New(host, dispatch.DefaultConfig())}}
	c := NewClient(tr)
	c.SetBatchWindow(0)
	return c, tr
}

func TestCounterIncrement(t *testing.T) {
	c, tr := newScenarioClient(&scenarioHost{})
	ctx := context.Background()

	v1, err := c.Call("increment").Await(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), v1)

	v2, err := c.Call("increment").Await(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), v2)

	require.Equal(t, 2, tr.executes, "two sequential awaits must produce two separate batches")
	require.Len(t, tr.lastReq.Batch, 1)
}

func TestBatchedIncrements(t *testing.T) {
	c, tr := newScenarioClient(&scenarioHost{})
	ctx := context.Background()

	// Pin the window far out so the explicit Flush is the only drain and
	// all three calls are provably in one batch.
	c.SetBatchWindow(time.Hour)

	a := c.Call("increment")
	b := c.Call("increment")
	d := c.Call("increment")
	c.Flush()

	va, err := a.Await(ctx)
	require.NoError(t, err)
	vb, err := b.Await(ctx)
	require.NoError(t, err)
	vd, err := d.Await(ctx)
	require.NoError(t, err)

	require.Equal(t, []int64{1, 2, 3}, []int64{va.(int64), vb.(int64), vd.(int64)})
	require.Equal(t, 1, tr.executes, "three concurrent calls must coalesce into one round trip")
	require.Len(t, tr.lastReq.Batch, 3)
}

func TestPipelining(t *testing.T) {
	c, tr := newScenarioClient(&scenarioHost{})
	c.SetBatchWindow(time.Hour)

	x := c.Call("increment")
	y := c.Call("increment")
	sum := c.Call("add", x.Pipe(), y.Pipe())
	c.Flush()

	result, err := sum.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), result, "add(1, 2) after two pipelined increments")

	require.Equal(t, 1, tr.executes, "pipelined arguments must not cost extra round trips")
	require.Len(t, tr.lastReq.Batch, 1, "the pipelined increments must not appear as top-level items")
}

func TestRemoteFunctionHandle(t *testing.T) {
	c, tr := newScenarioClient(&scenarioHost{})
	ctx := context.Background()

	obj, err := c.Call("getObject").Await(ctx)
	require.NoError(t, err)

	m, ok := obj.(map[string]any)
	require.True(t, ok, "expected the object to arrive as a map, got %T", obj)
	require.Equal(t, int64(42), m["Value"])

	nested, ok := m["Nested"].(map[string]any)
	require.True(t, ok, "expected Nested to be a map, got %T", m["Nested"])

	getValue, ok := nested["GetValue"].(*Handle)
	require.True(t, ok, "expected GetValue to decode into an invocable handle, got %T", nested["GetValue"])

	result, err := getValue.Apply().Await(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), result)

	// The re-invocation is a fresh batch whose chain replays the full
	// path from the host root.
	require.Len(t, tr.lastReq.Batch, 1)
	ops := tr.lastReq.Batch[0].Operations
	require.Len(t, ops, 5)
	require.Equal(t, chain.Get, ops[0].Kind)
	require.Equal(t, "getObject", ops[0].Key.String())
	require.Equal(t, chain.Apply, ops[1].Kind)
	require.Equal(t, "Nested", ops[2].Key.String())
	require.Equal(t, "GetValue", ops[3].Key.String())
	require.Equal(t, chain.Apply, ops[4].Kind)
}

func TestErrorFidelity(t *testing.T) {
	c, _ := newScenarioClient(&scenarioHost{})

	_, err := c.Call("throwIt").Await(context.Background())
	require.Error(t, err)

	ce, ok := chainerr.AsError(err)
	require.True(t, ok, "expected a classified error, got %T", err)
	require.Equal(t, "ValidationError", ce.Name)
	require.Equal(t, "bad", ce.Msg)
	require.Equal(t, "email", ce.Fields["field"])
}

func TestPrefixFilteredAncestorNotSent(t *testing.T) {
	c, tr := newScenarioClient(&scenarioHost{})
	c.SetBatchWindow(time.Hour)

	intermediate := c.Call("getObject")
	final := intermediate.Call("Val")
	c.Flush()

	result, err := final.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), result)

	require.Equal(t, 1, tr.executes)
	require.Len(t, tr.lastReq.Batch, 1, "the ancestor chain must be filtered, not sent alongside its extension")
	require.Equal(t, final.ID(), tr.lastReq.Batch[0].ID)
}

func TestCyclicResultGraphPreservesIdentity(t *testing.T) {
	c, _ := newScenarioClient(&scenarioHost{})

	result, err := c.Call("cycle").Await(context.Background())
	require.NoError(t, err)

	m, ok := result.(map[string]any)
	require.True(t, ok, "expected a map, got %T", result)
	require.Equal(t, "cyclic", m["tag"])

	self, ok := m["self"].(map[string]any)
	require.True(t, ok, "expected the cycle edge to be a map, got %T", m["self"])
	require.Equal(t, reflect.ValueOf(m).Pointer(), reflect.ValueOf(self).Pointer(),
		"the cycle must close onto the same output node, not a copy")
}

func TestAsObjectRendersCallablesAsStrings(t *testing.T) {
	c, _ := newScenarioClient(&scenarioHost{})

	shape, err := c.Root().AsObject(context.Background())
	require.NoError(t, err)

	m, ok := shape.(map[string]any)
	require.True(t, ok, "expected a map, got %T", shape)
	require.Equal(t, "Increment [Function]", m["Increment"])
	require.Equal(t, "Add [Function]", m["Add"])
}

func TestOversizedChainRejectedClientSide(t *testing.T) {
	c, tr := newScenarioClient(&scenarioHost{})
	c.MaxDepth = 2

	deep := c.Get("a").Get("b").Get("c")
	_, err := deep.Await(context.Background())
	require.Error(t, err)
	ce, ok := chainerr.AsError(err)
	require.True(t, ok)
	require.Equal(t, chainerr.Validation, ce.Kind)
	require.Equal(t, 0, tr.executes, "an oversized chain must fail before any round trip")
}
