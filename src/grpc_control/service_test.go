package grpc_control

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"marketstore-client/src/grpc_client"
	"marketstore-client/src/helpers"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"
	"marketstore-client/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type capturePublisher struct {
	mu       sync.Mutex
	payloads []models.MStreamPayload
}

func (p *capturePublisher) Publish(payload models.MStreamPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
}
func (p *capturePublisher) Start() error { return nil }
func (p *capturePublisher) Stop() error  { return nil }

func (p *capturePublisher) all() []models.MStreamPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MStreamPayload(nil), p.payloads...)
}

// -----------------------------------------------------------------------------

func startService(t *testing.T, pub *capturePublisher) (*MarketstoreService, *grpc_client.GrpcClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer()
	var publisher interfaces.IStreamPublisher
	if pub != nil {
		publisher = pub
	}
	svc := NewMarketstoreService(logger.Nop(), publisher)
	RegisterMarketstoreServer(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := grpc_client.NewGrpcClient("passthrough:///bufnet", 5*time.Second, logger.Nop(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return svc, client
}

func bars(epochs ...int64) []models.MOHLCVData {
	out := make([]models.MOHLCVData, 0, len(epochs))
	for i, e := range epochs {
		f := float32(i + 1)
		out = append(out, models.MOHLCVData{Epoch: e, Open: f, High: f + 1, Low: f - 1, Close: f + 0.5, Volume: 10 * f})
	}
	return out
}

// -----------------------------------------------------------------------------

func TestServerVersion(t *testing.T) {
	_, client := startService(t, nil)

	v, err := client.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, v)
}

func TestWriteQueryRoundTrip(t *testing.T) {
	pub := &capturePublisher{}
	_, client := startService(t, pub)
	ctx := context.Background()
	key := "AAPL/1Min/OHLCV"

	require.NoError(t, client.Write(ctx, key, utils.OHLCVToDataset(bars(300, 100, 200))))

	req, err := models.NewQueryRequest().Symbol("AAPL").Timeframe("1Min").AttrGroup("OHLCV").Build()
	require.NoError(t, err)
	res, err := client.Query(ctx, req)
	require.NoError(t, err)

	got, err := utils.DatasetToOHLCV(res.Data)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{got[0].Epoch, got[1].Epoch, got[2].Epoch})
	assert.Equal(t, bars(300, 100, 200)[1], got[0])
	assert.EqualValues(t, 3, res.Lengths[key])

	// Every written row is published to the stream side, in request order.
	published := pub.all()
	require.Len(t, published, 3)
	assert.Equal(t, key, published[0].Key)
	assert.Equal(t, int64(300), published[0].Data["Epoch"])
	assert.Equal(t, float32(1), published[0].Data["Open"])
}

func TestQueryRangeAndLimit(t *testing.T) {
	_, client := startService(t, nil)
	ctx := context.Background()
	require.NoError(t, client.Write(ctx, "X/1D/OHLCV", utils.OHLCVToDataset(bars(10, 20, 30, 40, 50))))

	query := func(b *models.QueryRequestBuilder) []int64 {
		req, err := b.Symbol("X").Timeframe("1D").AttrGroup("OHLCV").Build()
		require.NoError(t, err)
		res, err := client.Query(ctx, req)
		require.NoError(t, err)
		rows, err := utils.DatasetToOHLCV(res.Data)
		require.NoError(t, err)
		epochs := []int64{}
		for _, r := range rows {
			epochs = append(epochs, r.Epoch)
		}
		return epochs
	}

	assert.Equal(t, []int64{20, 30, 40}, query(models.NewQueryRequest().StartTime(20).EndTime(40)))
	assert.Equal(t, []int64{40, 50}, query(models.NewQueryRequest().Limit(2)))
	assert.Equal(t, []int64{10, 20}, query(models.NewQueryRequest().Limit(2).LimitFromStart(true)))
	assert.Equal(t, []int64{}, query(models.NewQueryRequest().StartTime(60)))
}

func TestQueryColumnsSelection(t *testing.T) {
	_, client := startService(t, nil)
	ctx := context.Background()
	require.NoError(t, client.Write(ctx, "X/1D/OHLCV", utils.OHLCVToDataset(bars(10))))

	req, err := models.NewQueryRequest().Symbol("X").Timeframe("1D").AttrGroup("OHLCV").Columns("Close").Build()
	require.NoError(t, err)
	res, err := client.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Epoch", "Close"}, res.Data.ColumnNames)
}

func TestCreateListDestroy(t *testing.T) {
	_, client := startService(t, nil)
	ctx := context.Background()

	require.NoError(t, client.CreateBucket(ctx, "MSFT/1Min/OHLCV", models.OHLCVDataShapes()))
	require.NoError(t, client.CreateBucket(ctx, "MSFT/1H/OHLCV", models.OHLCVDataShapes()))
	require.NoError(t, client.CreateBucket(ctx, "AAPL/1H/OHLCV", models.OHLCVDataShapes()))

	err := client.CreateBucket(ctx, "MSFT/1Min/OHLCV", models.OHLCVDataShapes())
	require.Error(t, err)
	assert.ErrorIs(t, err, helpers.ErrRpc)
	assert.Contains(t, err.Error(), "already exists")

	symbols, err := client.ListSymbols(ctx, models.SymbolFormatSymbol)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	keys, err := client.ListSymbols(ctx, models.SymbolFormatTimeBucketKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL/1H/OHLCV", "MSFT/1H/OHLCV", "MSFT/1Min/OHLCV"}, keys)

	require.NoError(t, client.DestroyBucket(ctx, "MSFT/1H/OHLCV"))
	err = client.DestroyBucket(ctx, "MSFT/1H/OHLCV")
	assert.ErrorIs(t, err, helpers.ErrRpc)

	keys, err = client.ListSymbols(ctx, models.SymbolFormatTimeBucketKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL/1H/OHLCV", "MSFT/1Min/OHLCV"}, keys)
}

func TestCreateRejectsBadSchema(t *testing.T) {
	_, client := startService(t, nil)
	err := client.CreateBucket(context.Background(), "A/1Min/OHLCV", []models.MDataShape{{Name: "Open", DataType: "f4"}})
	assert.ErrorIs(t, err, helpers.ErrRpc)

	err = client.CreateBucket(context.Background(), "A/*/OHLCV", models.OHLCVDataShapes())
	assert.ErrorIs(t, err, helpers.ErrRpc)
}

func TestQueryUnknownBucket(t *testing.T) {
	_, client := startService(t, nil)
	req, err := models.NewQueryRequest().Symbol("NOPE").Timeframe("1Min").AttrGroup("OHLCV").Build()
	require.NoError(t, err)

	_, err = client.Query(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, helpers.ErrRpc)
}

func TestWriteReplacesSameEpoch(t *testing.T) {
	svc, client := startService(t, nil)
	ctx := context.Background()

	require.NoError(t, client.Write(ctx, "A/1Min/OHLCV", utils.OHLCVToDataset(bars(10, 20))))
	update := []models.MOHLCVData{{Epoch: 20, Open: 9, High: 9, Low: 9, Close: 9, Volume: 9}}
	require.NoError(t, client.Write(ctx, "A/1Min/OHLCV", utils.OHLCVToDataset(update)))

	svc.mu.RLock()
	defer svc.mu.RUnlock()
	require.Len(t, svc.buckets["A/1Min/OHLCV"].rows, 2)
}
