package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"marketstore-client/src/models"
)

// Column data is packed little-endian, one element per row, in the numpy
// type notation MarketStore uses ("i8", "f4", ...).

// -----------------------------------------------------------------------------

// ColumnTypeSize returns the byte width of one element of a numpy type.
func ColumnTypeSize(columnType string) (int, error) {
	switch columnType {
	case "i8", "u8", "f8":
		return 8, nil
	case "i4", "u4", "f4":
		return 4, nil
	case "i2", "u2":
		return 2, nil
	case "i1", "u1", "b1":
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported column type %q", columnType)
	}
}

// -----------------------------------------------------------------------------

// DecodeCell decodes one element of the given type.
func DecodeCell(columnType string, b []byte) (interface{}, error) {
	size, err := ColumnTypeSize(columnType)
	if err != nil {
		return nil, err
	}
	if len(b) < size {
		return nil, fmt.Errorf("short %s cell: %d bytes", columnType, len(b))
	}

	switch columnType {
	case "i8":
		return int64(binary.LittleEndian.Uint64(b)), nil
	case "u8":
		return binary.LittleEndian.Uint64(b), nil
	case "f8":
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case "i4":
		return int32(binary.LittleEndian.Uint32(b)), nil
	case "u4":
		return binary.LittleEndian.Uint32(b), nil
	case "f4":
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case "i2":
		return int16(binary.LittleEndian.Uint16(b)), nil
	case "u2":
		return binary.LittleEndian.Uint16(b), nil
	case "i1":
		return int8(b[0]), nil
	case "u1":
		return b[0], nil
	default: // b1
		return b[0] != 0, nil
	}
}

// -----------------------------------------------------------------------------
// OHLCV
// -----------------------------------------------------------------------------

// OHLCVToDataset packs bars into the Epoch/Open/High/Low/Close/Volume layout.
func OHLCVToDataset(rows []models.MOHLCVData) *models.MNumpyDataset {
	n := len(rows)
	epochs := make([]byte, 0, n*8)
	cols := make([][]byte, 5)
	for i := range cols {
		cols[i] = make([]byte, 0, n*4)
	}

	for _, r := range rows {
		epochs = binary.LittleEndian.AppendUint64(epochs, uint64(r.Epoch))
		for i, v := range [5]float32{r.Open, r.High, r.Low, r.Close, r.Volume} {
			cols[i] = binary.LittleEndian.AppendUint32(cols[i], math.Float32bits(v))
		}
	}

	shapes := models.OHLCVDataShapes()
	ds := &models.MNumpyDataset{
		ColumnData: append([][]byte{epochs}, cols...),
		Length:     int32(n),
	}
	for _, s := range shapes {
		ds.ColumnNames = append(ds.ColumnNames, s.Name)
		ds.ColumnTypes = append(ds.ColumnTypes, s.DataType)
	}
	return ds
}

// -----------------------------------------------------------------------------

// DatasetToOHLCV reads bars back out of a dataset. Columns are looked up by
// name so extra columns and reordering are tolerated.
func DatasetToOHLCV(ds *models.MNumpyDataset) ([]models.MOHLCVData, error) {
	if ds == nil {
		return []models.MOHLCVData{}, nil
	}
	if err := validateDataset(ds); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(ds.ColumnNames))
	for i, name := range ds.ColumnNames {
		index[name] = i
	}
	want := map[string]string{"Epoch": "i8", "Open": "f4", "High": "f4", "Low": "f4", "Close": "f4", "Volume": "f4"}
	for name, typ := range want {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
		if ds.ColumnTypes[i] != typ {
			return nil, fmt.Errorf("column %s has type %s, want %s", name, ds.ColumnTypes[i], typ)
		}
	}

	f4 := func(name string, row int) float32 {
		col := ds.ColumnData[index[name]]
		return math.Float32frombits(binary.LittleEndian.Uint32(col[row*4:]))
	}

	rows := make([]models.MOHLCVData, ds.Length)
	epochs := ds.ColumnData[index["Epoch"]]
	for i := range rows {
		rows[i] = models.MOHLCVData{
			Epoch:  int64(binary.LittleEndian.Uint64(epochs[i*8:])),
			Open:   f4("Open", i),
			High:   f4("High", i),
			Low:    f4("Low", i),
			Close:  f4("Close", i),
			Volume: f4("Volume", i),
		}
	}
	return rows, nil
}

// -----------------------------------------------------------------------------
// Generic rows
// -----------------------------------------------------------------------------

// DatasetRows decodes every row into a column name -> value map, the same
// shape stream payloads carry in their data field.
func DatasetRows(ds *models.MNumpyDataset) ([]map[string]interface{}, error) {
	if ds == nil {
		return []map[string]interface{}{}, nil
	}
	if err := validateDataset(ds); err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, ds.Length)
	for r := range rows {
		rows[r] = make(map[string]interface{}, len(ds.ColumnNames))
	}
	for c, name := range ds.ColumnNames {
		size, _ := ColumnTypeSize(ds.ColumnTypes[c])
		for r := range rows {
			v, err := DecodeCell(ds.ColumnTypes[c], ds.ColumnData[c][r*size:])
			if err != nil {
				return nil, err
			}
			rows[r][name] = v
		}
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

// SliceDataset copies rows [start, start+length) into a new dataset.
func SliceDataset(ds *models.MNumpyDataset, start, length int) (*models.MNumpyDataset, error) {
	if err := validateDataset(ds); err != nil {
		return nil, err
	}
	if start < 0 || length < 0 || start+length > int(ds.Length) {
		return nil, fmt.Errorf("rows [%d,%d) out of range for %d rows", start, start+length, ds.Length)
	}

	out := &models.MNumpyDataset{
		ColumnTypes: append([]string(nil), ds.ColumnTypes...),
		ColumnNames: append([]string(nil), ds.ColumnNames...),
		ColumnData:  make([][]byte, len(ds.ColumnData)),
		Length:      int32(length),
	}
	for c, typ := range ds.ColumnTypes {
		size, _ := ColumnTypeSize(typ)
		out.ColumnData[c] = append([]byte(nil), ds.ColumnData[c][start*size:(start+length)*size]...)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func validateDataset(ds *models.MNumpyDataset) error {
	if len(ds.ColumnNames) != len(ds.ColumnTypes) || len(ds.ColumnNames) != len(ds.ColumnData) {
		return fmt.Errorf("dataset has %d names, %d types and %d columns",
			len(ds.ColumnNames), len(ds.ColumnTypes), len(ds.ColumnData))
	}
	if ds.Length < 0 {
		return fmt.Errorf("negative dataset length %d", ds.Length)
	}
	for i, typ := range ds.ColumnTypes {
		size, err := ColumnTypeSize(typ)
		if err != nil {
			return fmt.Errorf("column %s: %w", ds.ColumnNames[i], err)
		}
		if len(ds.ColumnData[i]) < size*int(ds.Length) {
			return fmt.Errorf("column %s has %d bytes, need %d", ds.ColumnNames[i], len(ds.ColumnData[i]), size*int(ds.Length))
		}
	}
	return nil
}
