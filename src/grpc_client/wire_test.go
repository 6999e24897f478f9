package grpc_client

import (
	"errors"
	"testing"

	"marketstore-client/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestQueryRequestFieldNumbers(t *testing.T) {
	req := &QueryRequest{Destination: "A/1Min/OHLCV", EpochStart: 5, LimitRecordCount: 1000}
	b := req.MarshalWire()

	num, typ, n := protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.Equal(t, protowire.Number(3), num)
	assert.Equal(t, protowire.BytesType, typ)

	got := &QueryRequest{}
	require.NoError(t, got.UnmarshalWire(b))
	assert.Equal(t, req, got)
}

func TestNumpyMultiDatasetMapsAndEmptyColumns(t *testing.T) {
	in := &NumpyMultiDataset{
		Data: &NumpyDataset{
			ColumnTypes: []string{"i8", "f4"},
			ColumnNames: []string{"Epoch", "Close"},
			ColumnData:  [][]byte{{}, {}},
		},
		StartIndex: map[string]int32{"B/1H/TICK": 0, "A/1Min/OHLCV": 0},
		Lengths:    map[string]int32{"B/1H/TICK": 0, "A/1Min/OHLCV": -1},
	}
	out := &NumpyMultiDataset{}
	require.NoError(t, out.UnmarshalWire(in.MarshalWire()))

	assert.Equal(t, in.StartIndex, out.StartIndex)
	assert.Equal(t, in.Lengths, out.Lengths)
	// empty column buffers are kept so names, types and data stay aligned
	assert.Len(t, out.Data.ColumnData, 2)
	assert.Equal(t, in.MarshalWire(), out.MarshalWire())
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "4.1.0")
	b = protowire.AppendTag(b, 42, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{1, 2, 3})

	got := &ServerVersionResponse{}
	require.NoError(t, got.UnmarshalWire(b))
	assert.Equal(t, "4.1.0", got.Version)
}

func TestTruncatedMessage(t *testing.T) {
	b := (&KeyRequest{Key: "A/1Min/OHLCV"}).MarshalWire()
	assert.Error(t, (&KeyRequest{}).UnmarshalWire(b[:len(b)-2]))
}

func TestMultiServerResponseFirstError(t *testing.T) {
	resp := &MultiServerResponse{Responses: []*ServerResponse{{}, {Error: "boom"}, {Error: "later"}}}
	assert.Equal(t, "boom", resp.FirstError())

	err := serverError(MethodWrite, resp)
	assert.ErrorIs(t, err, helpers.ErrRpc)
	assert.Nil(t, serverError(MethodWrite, &MultiServerResponse{}))
}

func TestCodec(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "proto", c.Name())

	b, err := c.Marshal(&KeyRequest{Key: "k"})
	require.NoError(t, err)
	var k KeyRequest
	require.NoError(t, c.Unmarshal(b, &k))
	assert.Equal(t, "k", k.Key)

	_, err = c.Marshal("not a message")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(MethodQuery, status.Error(codes.Unavailable, "down")), helpers.ErrConnection)
	assert.ErrorIs(t, classify(MethodQuery, status.Error(codes.DeadlineExceeded, "slow")), helpers.ErrTimeout)
	assert.ErrorIs(t, classify(MethodQuery, status.Error(codes.NotFound, "nope")), helpers.ErrRpc)
	assert.ErrorIs(t, classify(MethodQuery, errors.New("plain")), helpers.ErrRpc)
}
