package marshal

import (
	"math/big"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/wire"
)

// TestBigIntRoundTripPreservesSignAndValue exercises the full host ->
// wire -> client path for *big.Int: Preprocess converts it to a
// wire.BigIntValue (the codec cannot walk *big.Int's unexported fields
// directly), the value crosses a real wire.EncodeValue/DecodeValue round
// trip, and Postprocess converts it back to a *big.Int a caller can use
// as such.
func TestBigIntRoundTripPreservesSignAndValue(t *testing.T) {
	original := new(big.Int)
	original.SetString("-170141183460469231731687303715884105728", 10)

	preprocessed := Preprocess(original, chain.Chain{})

	encoded, err := wire.EncodeValue(preprocessed)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, wire.DecodeValue(encoded, &decoded))

	result := Postprocess(decoded, noopResolver)
	got, ok := result.(*big.Int)
	require.True(t, ok, "expected *big.Int, got %T", result)
	require.Equal(t, 0, original.Cmp(got), "expected %s, got %s", original.String(), got.String())
	require.Equal(t, -1, got.Sign())
}

// TestRegexpRoundTripPreservesSource exercises the same path for
// *regexp.Regexp.
func TestRegexpRoundTripPreservesSource(t *testing.T) {
	original := regexp.MustCompile(`^[a-z]+\d*$`)

	preprocessed := Preprocess(original, chain.Chain{})

	encoded, err := wire.EncodeValue(preprocessed)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, wire.DecodeValue(encoded, &decoded))

	result := Postprocess(decoded, noopResolver)
	got, ok := result.(*regexp.Regexp)
	require.True(t, ok, "expected *regexp.Regexp, got %T", result)
	require.Equal(t, original.String(), got.String())
}

func noopResolver(wire.RemoteFunctionMarker) any { return nil }
