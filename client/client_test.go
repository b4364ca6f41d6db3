package client

import (
	"context"
	"testing"
	"time"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/dispatch"
	"github.com/cider/chainrpc/transport"
	"github.com/cider/chainrpc/wire"
)

// inProcessTransport drives a dispatch.Dispatcher directly, skipping any
// network hop, so these tests exercise the batcher's pipelining/aliasing
// logic end-to-end against the real server-side resolution path.
// lastReq records the most recently sent envelope so tests can assert the
// wire-level shape the batcher produced (e.g. definer/alias markers),
// not just the round-tripped result.
type inProcessTransport struct {
	d       *dispatch.Dispatcher
	lastReq wire.BatchRequest
}

func (t *inProcessTransport) Execute(ctx context.Context, req wire.BatchRequest) (wire.BatchResponse, error) {
	t.lastReq = req
	return t.d.ExecuteBatch(ctx, req), nil
}
func (t *inProcessTransport) Connect(ctx context.Context) error                   { return nil }
func (t *inProcessTransport) Disconnect(ctx context.Context) error                { return nil }
func (t *inProcessTransport) IsConnected() bool                                   { return true }
func (t *inProcessTransport) SetDownstreamHandler(fn transport.DownstreamHandler) {}
func (t *inProcessTransport) SetKeepAlive(enabled bool)                           {}

var _ transport.Transport = (*inProcessTransport)(nil)

type testHost struct {
	value int64
}

func (h *testHost) Increment(by int64) int64 {
	h.value += by
	return h.value
}
func (h *testHost) Value() int64 { return h.value }

// Echo returns its two arguments as a slice: the shape used to verify
// that reusing the same client Handle as both arguments produces exactly
// one definer plus one alias on the wire, not two independently-resolved
// definers.
func (h *testHost) Echo(a, b any) []any { return []any{a, b} }

func newTestClient(host any) *Client {
	tr := &inProcessTransport{d: dispatch.New(host, dispatch.DefaultConfig())}
	c := NewClient(tr)
	c.SetBatchWindow(0)
	return c
}

func TestClientPlainCall(t *testing.T) {
	c := newTestClient(&testHost{})
	val, err := c.Call("increment", int64(7)).Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if val != int64(7) {
		t.Fatalf("got %v, want 7", val)
	}
}

func TestClientBatchesConcurrentCalls(t *testing.T) {
	host := &testHost{}
	c := newTestClient(host)
	// Pin the window far out so the explicit Flush is the only drain.
	c.SetBatchWindow(time.Hour)

	var batches int
	c.SetInspectHandler(func(ev InspectEvent) {
		if ev.Kind == "drain" {
			batches++
		}
	})

	h1 := c.Call("increment", int64(1))
	h2 := c.Call("increment", int64(1))
	c.Flush()

	v1, err := h1.Await(context.Background())
	if err != nil {
		t.Fatalf("h1 await: %v", err)
	}
	v2, err := h2.Await(context.Background())
	if err != nil {
		t.Fatalf("h2 await: %v", err)
	}
	if v1 != int64(1) || v2 != int64(2) {
		t.Fatalf("expected sequential increments 1,2; got %v,%v", v1, v2)
	}
	if batches != 1 {
		t.Fatalf("expected both calls to share one drained batch, got %d drains", batches)
	}
}

func TestClientPipelinedArgument(t *testing.T) {
	host := &testHost{value: 10}
	c := newTestClient(host)

	// "value" handle is passed directly as an argument to "increment"
	// without being awaited first: the batcher must substitute it with a
	// NestedOperationMarker and resolve it server-side in the same batch.
	valueHandle := c.Call("value")
	sum := c.Call("increment", valueHandle)
	c.Flush()

	result, err := sum.Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	// host.value starts at 10; increment(10) -> 20.
	if result != int64(20) {
		t.Fatalf("expected 20, got %v", result)
	}
}

// TestAliasing: the same Handle passed twice as
// arguments to one call must produce exactly one definer plus one bare
// alias NestedOperationMarker on the wire, and the host must see the
// identical resolved value both times. echo(a, b) makes both observable:
// the result pairs the resolved values, and lastReq exposes the markers
// actually sent.
func TestAliasing(t *testing.T) {
	host := &testHost{value: 3}
	tr := &inProcessTransport{d: dispatch.New(host, dispatch.DefaultConfig())}
	c := NewClient(tr)
	c.SetBatchWindow(0)

	valueHandle := c.Call("value")
	result := c.Root().Get("echo").Apply(valueHandle, valueHandle)
	c.Flush()

	val, err := result.Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	pair, ok := val.([]any)
	if !ok || len(pair) != 2 {
		t.Fatalf("expected a 2-element echo result, got %#v", val)
	}
	if pair[0] != int64(3) || pair[1] != int64(3) {
		t.Fatalf("expected echo(3, 3) since both args resolve to the same value, got %v", pair)
	}
	if pair[0] != pair[1] {
		t.Fatalf("expected x === y for the aliased argument, got %v and %v", pair[0], pair[1])
	}

	var echoItem *wire.Item
	for i := range tr.lastReq.Batch {
		for _, op := range tr.lastReq.Batch[i].Operations {
			if op.Kind == chain.Get && op.Key.String() == "echo" {
				echoItem = &tr.lastReq.Batch[i]
			}
		}
	}
	if echoItem == nil {
		t.Fatal("expected a batch item for the echo call")
	}
	var args []any
	for _, op := range echoItem.Operations {
		if op.Kind == chain.Apply {
			args = op.Args
		}
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args on the echo Apply, got %d", len(args))
	}
	first, ok := args[0].(wire.NestedOperationMarker)
	if !ok {
		t.Fatalf("expected first arg to be a NestedOperationMarker, got %T", args[0])
	}
	second, ok := args[1].(wire.NestedOperationMarker)
	if !ok {
		t.Fatalf("expected second arg to be a NestedOperationMarker, got %T", args[1])
	}
	if !first.IsDefiner() {
		t.Fatal("expected the first occurrence to carry the nested chain (the definer)")
	}
	if second.IsDefiner() {
		t.Fatal("expected the second occurrence to be a bare alias, not a second definer")
	}
	if first.RefID != second.RefID || first.RefID != valueHandle.ID() {
		t.Fatalf("expected both markers to share refId %q, got %q and %q", valueHandle.ID(), first.RefID, second.RefID)
	}
}
