package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cider/chainrpc/chain"
)

func TestRequestRoundTrip(t *testing.T) {
	req := BatchRequest{Batch: []Item{
		{ID: "1", Operations: chain.Chain{}.Extend(chain.GetOp(chain.StringKey("increment"))).Extend(chain.ApplyOp([]any{int64(1)}))},
	}}

	encoded, err := EncodeRequest(req)
	require.NoError(t, err)

	decoded, err := DecodeRequest(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Batch, 1)
	require.Equal(t, "1", decoded.Batch[0].ID)
	require.Len(t, decoded.Batch[0].Operations, 2)
}

func TestResponseRoundTripWithError(t *testing.T) {
	resp := BatchResponse{Batch: []Result{
		{ID: "1", Success: true, Value: int64(42)},
		{ID: "2", Success: false, Err: &ErrorValue{Name: "TypeError", Message: "boom"}},
	}}

	encoded, err := EncodeResponse(resp)
	require.NoError(t, err)

	decoded, err := DecodeResponse(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Batch, 2)
	require.False(t, decoded.Batch[1].Success, "expected second result to be a failure")
}

func TestValueRoundTripPreservesSpecialShapes(t *testing.T) {
	cases := map[string]any{
		"int64 extreme":  int64(9223372036854775807),
		"negative float": -1.5,
		"string key map": map[string]any{"a": int64(1), "b": "two"},
		"ordered map":    OrderedMap{Keys: []any{"k1", "k2"}, Values: []any{int64(1), int64(2)}},
		"set":            Set{Items: []any{int64(1), int64(2), int64(3)}},
		// *big.Int and *regexp.Regexp themselves never reach the codec —
		// marshal.Preprocess converts them into these stand-ins first
		// (wire.EncodeNativeValue) since the codec cannot walk their
		// unexported fields. What actually crosses the wire, and so what
		// needs to round-trip here, is the stand-in shape itself.
		"bigint stand-in": BigIntValue{IsBigInt: true, Value: "-170141183460469231731687303715884105728"},
		"regexp stand-in": RegExpValue{IsRegExp: true, Source: `^[a-z]+\d*$`},
	}
	for name, v := range cases {
		name, v := name, v
		t.Run(name, func(t *testing.T) {
			encoded, err := EncodeValue(v)
			require.NoError(t, err)
			var decoded any
			require.NoError(t, DecodeValue(encoded, &decoded))

			switch want := v.(type) {
			case BigIntValue:
				got, ok := RecognizeBigInt(decoded)
				require.True(t, ok, "expected decoded value to be recognized as a BigIntValue")
				require.Equal(t, want.Value, got.Value)
			case RegExpValue:
				got, ok := RecognizeRegExp(decoded)
				require.True(t, ok, "expected decoded value to be recognized as a RegExpValue")
				require.Equal(t, want.Source, got.Source)
			}
		})
	}
}
