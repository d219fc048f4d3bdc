package bencode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawMessageMarshalPassesThroughVerbatim(t *testing.T) {
	require := require.New(t)

	m := RawMessage("d4:name3:fooe")
	data, err := m.MarshalBencode()
	require.NoError(err)
	require.Equal([]byte("d4:name3:fooe"), data)
}

func TestRawMessageMarshalNilIsEmptyString(t *testing.T) {
	require := require.New(t)

	var m RawMessage
	data, err := m.MarshalBencode()
	require.NoError(err)
	require.Equal([]byte("0:"), data)
}

func TestRawMessageUnmarshalCopiesData(t *testing.T) {
	require := require.New(t)

	src := []byte("d4:name3:fooe")
	var m RawMessage
	require.NoError(m.UnmarshalBencode(src))
	require.Equal(src, []byte(m))

	// Mutating the source afterward must not affect m.
	src[0] = 'x'
	require.Equal(byte('d'), m[0])
}

func TestRawMessageEmbeddedInStructPreservesExactBytes(t *testing.T) {
	require := require.New(t)

	type envelope struct {
		Info RawMessage `bencode:"info"`
	}

	// A non-canonical (but well-formed) dict ordering must survive the
	// round trip untouched, since RawMessage never re-encodes.
	raw := "d1:z3:abc1:a3:xyze"
	e := envelope{Info: RawMessage(raw)}
	data, err := Marshal(e)
	require.NoError(err)

	var got envelope
	require.NoError(Unmarshal(data, &got))
	require.Equal(raw, string(got.Info))
}
