package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cider/chainrpc/chain"
)

func TestRequestFrameRoundTrip(t *testing.T) {
	items := []Item{
		{ID: "1", Operations: chain.Chain{}.Extend(chain.GetOp(chain.StringKey("increment"))).Extend(chain.ApplyOp([]any{int64(1)}))},
	}

	encoded, err := EncodeRequestFrame("rpc", items)
	require.NoError(t, err)

	frame, err := DecodeFrame(encoded)
	require.NoError(t, err)
	require.Equal(t, "rpc", frame.Type)

	decoded, err := DecodeRequestBatch(frame)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, "1", decoded[0].ID)
	require.Len(t, decoded[0].Operations, 2)
}

func TestDownstreamFrameRoundTrip(t *testing.T) {
	encoded, err := EncodeDownstreamFrame(map[string]any{"event": "refresh"})
	require.NoError(t, err)

	frame, err := DecodeFrame(encoded)
	require.NoError(t, err)
	require.Equal(t, DownstreamFrameType, frame.Type)

	payload, err := DecodeDownstreamPayload(frame)
	require.NoError(t, err)
	m, ok := payload.(map[string]any)
	require.True(t, ok, "expected the payload to decode as a map, got %T", payload)
	require.Equal(t, "refresh", m["event"])
}

func TestNestedMarkerSurvivesGenericDecode(t *testing.T) {
	marker := NestedOperationMarker{
		IsNestedOperation: true,
		RefID:             "r1",
		OperationChain:    chain.Chain{}.Extend(chain.GetOp(chain.StringKey("value"))).Extend(chain.ApplyOp(nil)),
	}
	req := BatchRequest{Batch: []Item{
		{ID: "1", Operations: chain.Chain{}.Extend(chain.GetOp(chain.StringKey("echo"))).Extend(chain.ApplyOp([]any{marker}))},
	}}

	encoded, err := EncodeRequest(req)
	require.NoError(t, err)
	decoded, err := DecodeRequest(encoded)
	require.NoError(t, err)

	// The marker rode inside an any-typed argument, so it decodes as a
	// generic map; RecognizeNested must reconstruct it whole.
	args := decoded.Batch[0].Operations[1].Args
	require.Len(t, args, 1)
	got, ok := RecognizeNested(args[0])
	require.True(t, ok, "expected the decoded argument to be recognized as a nested marker, got %T", args[0])
	require.Equal(t, "r1", got.RefID)
	require.True(t, got.IsDefiner())
	require.Len(t, got.OperationChain, 2)
}
