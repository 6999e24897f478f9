package grpc_client

import (
	"marketstore-client/src/models"
)

// -----------------------------------------------------------------------------
// models <-> wire
// -----------------------------------------------------------------------------

func DatasetToWire(ds *models.MNumpyDataset) *NumpyDataset {
	if ds == nil {
		return nil
	}
	return &NumpyDataset{
		ColumnTypes: append([]string(nil), ds.ColumnTypes...),
		ColumnNames: append([]string(nil), ds.ColumnNames...),
		ColumnData:  ds.ColumnData,
		Length:      ds.Length,
	}
}

func DatasetFromWire(ds *NumpyDataset) *models.MNumpyDataset {
	if ds == nil {
		return nil
	}
	return &models.MNumpyDataset{
		ColumnTypes: ds.ColumnTypes,
		ColumnNames: ds.ColumnNames,
		ColumnData:  ds.ColumnData,
		Length:      ds.Length,
	}
}

func MultiDatasetFromWire(m *NumpyMultiDataset) *models.MNumpyMultiDataset {
	out := &models.MNumpyMultiDataset{
		Data:       DatasetFromWire(m.Data),
		StartIndex: m.StartIndex,
		Lengths:    m.Lengths,
	}
	if out.StartIndex == nil {
		out.StartIndex = map[string]int32{}
	}
	if out.Lengths == nil {
		out.Lengths = map[string]int32{}
	}
	return out
}

func MultiDatasetToWire(m *models.MNumpyMultiDataset) *NumpyMultiDataset {
	return &NumpyMultiDataset{
		Data:       DatasetToWire(m.Data),
		StartIndex: m.StartIndex,
		Lengths:    m.Lengths,
	}
}

// -----------------------------------------------------------------------------

func QueryToWire(q *models.MQueryRequest) *QueryRequest {
	return &QueryRequest{
		Destination:      q.Destination,
		EpochStart:       q.EpochStart,
		EpochEnd:         q.EpochEnd,
		LimitRecordCount: q.LimitRecordCount,
		LimitFromStart:   q.LimitFromStart,
		Columns:          q.Columns,
	}
}

func ShapesToWire(shapes []models.MDataShape) []*DataShape {
	out := make([]*DataShape, 0, len(shapes))
	for _, s := range shapes {
		out = append(out, &DataShape{Name: s.Name, Type: s.DataType})
	}
	return out
}

func ShapesFromWire(shapes []*DataShape) []models.MDataShape {
	out := make([]models.MDataShape, 0, len(shapes))
	for _, s := range shapes {
		out = append(out, models.MDataShape{Name: s.Name, DataType: s.Type})
	}
	return out
}
