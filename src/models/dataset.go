package models

// MOHLCVData is one bar of a symbol/timeframe/OHLCV bucket.
type MOHLCVData struct {
	Epoch  int64   `json:"epoch"`
	Open   float32 `json:"open"`
	High   float32 `json:"high"`
	Low    float32 `json:"low"`
	Close  float32 `json:"close"`
	Volume float32 `json:"volume"`
}

// MDataShape names one column and its numpy-style type ("i8", "f4", ...).
type MDataShape struct {
	Name     string `json:"name"`
	DataType string `json:"type"`
}

// SymbolFormat selects what ListSymbols returns.
type SymbolFormat int32

const (
	SymbolFormatSymbol        SymbolFormat = 0
	SymbolFormatTimeBucketKey SymbolFormat = 1
)

// MNumpyDataset holds columnar rows, one little-endian byte slice per column.
type MNumpyDataset struct {
	ColumnTypes []string
	ColumnNames []string
	ColumnData  [][]byte
	Length      int32
}

// MNumpyMultiDataset packs several buckets into one dataset; StartIndex and
// Lengths are keyed by time bucket key.
type MNumpyMultiDataset struct {
	Data       *MNumpyDataset
	StartIndex map[string]int32
	Lengths    map[string]int32
}

// -----------------------------------------------------------------------------

// OHLCVDataShapes is the schema used for OHLCV buckets.
func OHLCVDataShapes() []MDataShape {
	return []MDataShape{
		{Name: "Epoch", DataType: "i8"},
		{Name: "Open", DataType: "f4"},
		{Name: "High", DataType: "f4"},
		{Name: "Low", DataType: "f4"},
		{Name: "Close", DataType: "f4"},
		{Name: "Volume", DataType: "f4"},
	}
}
