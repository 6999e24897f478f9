package server

import (
	"context"
	"math/rand/v2"
	"time"

	"marketstore-client/src/logger"
	"marketstore-client/src/models"
	"marketstore-client/src/utils"
)

// BarWriter is the part of the client the feeder needs.
type BarWriter interface {
	Write(ctx context.Context, symbol, timeframe, attrGroup string, rows []models.MOHLCVData) error
}

// -----------------------------------------------------------------------------
// Feeder
// -----------------------------------------------------------------------------

// Feeder writes one synthetic OHLCV bar per symbol and tick through the RPC
// side, so every bar also reaches matching stream subscribers.
type Feeder struct {
	Config models.MSimulatorConfig
	Writer BarWriter
	Logger *logger.Logger

	rng  *rand.Rand
	last map[string]float32
	now  func() time.Time
}

func NewFeeder(cfg models.MSimulatorConfig, w BarWriter, log *logger.Logger) *Feeder {
	return &Feeder{
		Config: cfg,
		Writer: w,
		Logger: log,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d61726b)),
		last:   make(map[string]float32),
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// Run ticks until ctx is cancelled.
func (f *Feeder) Run(ctx context.Context) error {
	interval := time.Duration(f.Config.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	f.Logger.Info("Feeding %d symbols every %v", len(f.Config.Symbols), interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Tick writes one bar per symbol. Closed markets are skipped when
// market_hours_only is set.
func (f *Feeder) Tick(ctx context.Context) int {
	now := f.now().UTC()
	if f.Config.MarketHoursOnly && !utils.AnyMarketOpen(f.Config.Symbols, now) {
		f.Logger.Debug("All markets closed, skipping tick")
		return 0
	}

	written := 0
	for _, sym := range f.Config.Symbols {
		if f.Config.MarketHoursOnly && !utils.MarketHoursFor(sym).IsOpen(now) {
			continue
		}
		bar := f.nextBar(sym, now.Unix())
		if err := f.Writer.Write(ctx, sym, f.Config.Timeframe, "OHLCV", []models.MOHLCVData{bar}); err != nil {
			f.Logger.Warning("Failed to write bar for %s: %v", sym, err)
			continue
		}
		written++
	}
	return written
}

// -----------------------------------------------------------------------------

// nextBar continues a random walk from the symbol's previous close.
func (f *Feeder) nextBar(symbol string, epoch int64) models.MOHLCVData {
	open, ok := f.last[symbol]
	if !ok {
		open = 50 + f.rng.Float32()*150
	}
	move := func() float32 { return open * (f.rng.Float32() - 0.5) * 0.01 }

	closePrice := open + move()
	high := max(open, closePrice) + abs32(move())
	low := min(open, closePrice) - abs32(move())
	f.last[symbol] = closePrice

	return models.MOHLCVData{
		Epoch:  epoch,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: float32(100 + f.rng.IntN(10000)),
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
