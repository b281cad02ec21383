package hotqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestProtoCodec_Queue(t *testing.T) {
	s, c := newTestRedis(t)
	ctx := context.Background()
	q := mustNewQueue[*wrapperspb.StringValue](t, c, "proto", WithCodec(ProtoCodec{}))

	require.NoError(t, q.Put(ctx, wrapperspb.String("first"), wrapperspb.String("second")))

	raw, err := s.List(q.Key())
	require.NoError(t, err)
	want, err := proto.Marshal(wrapperspb.String("first"))
	require.NoError(t, err)
	require.Equal(t, string(want), raw[0])

	for _, v := range []string{"first", "second"} {
		msg, ok, err := q.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, v, msg.GetValue())
	}
}

func TestProtoCodec_Unsupported(t *testing.T) {
	var c ProtoCodec

	_, err := c.Marshal("plain string")
	require.ErrorIs(t, err, ErrUnsupportedType)

	var s string
	require.ErrorIs(t, c.Unmarshal(nil, &s), ErrUnsupportedType)

	var n *int
	require.ErrorIs(t, c.Unmarshal(nil, &n), ErrUnsupportedType)

	// Decoding straight into a message works too.
	b, err := c.Marshal(wrapperspb.Int64(7))
	require.NoError(t, err)
	var v wrapperspb.Int64Value
	require.NoError(t, c.Unmarshal(b, &v))
	require.EqualValues(t, 7, v.GetValue())
}

func TestRawCodec_Queue(t *testing.T) {
	s, c := newTestRedis(t)
	ctx := context.Background()
	q := mustNewQueue[string](t, c, "raw", WithCodec(RawCodec{}))

	// A producer outside this package pushing plain strings.
	_, err := s.Push(q.Key(), "from-redis-cli")
	require.NoError(t, err)
	require.NoError(t, q.Put(ctx, "from-go"))

	raw, err := s.List(q.Key())
	require.NoError(t, err)
	require.Equal(t, []string{"from-redis-cli", "from-go"}, raw)

	require.Equal(t, []string{"from-redis-cli", "from-go"}, collect(t, q, ctx, Block(false)))
}

func TestRawCodec_Bytes(t *testing.T) {
	var c RawCodec

	b, err := c.Marshal([]byte{0, 1, 2})
	require.NoError(t, err)

	var out []byte
	require.NoError(t, c.Unmarshal(b, &out))
	require.Equal(t, []byte{0, 1, 2}, out)

	_, err = c.Marshal(42)
	require.ErrorIs(t, err, ErrUnsupportedType)

	var n int
	require.ErrorIs(t, c.Unmarshal(b, &n), ErrUnsupportedType)
}
