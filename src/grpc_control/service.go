// Package grpc_control serves proto.Marketstore from memory. It backs the
// local simulator and the client tests.
package grpc_control

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"marketstore-client/src/grpc_client"
	"marketstore-client/src/interfaces"
	"marketstore-client/src/logger"
	"marketstore-client/src/models"
	"marketstore-client/src/utils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const DefaultVersion = "memory-4.1.0"

// bucket stores fixed-width rows ordered by epoch. Each row keeps one raw
// cell per column.
type bucket struct {
	shapes []models.MDataShape
	rows   []row
}

type row struct {
	epoch int64
	cells [][]byte
}

// -----------------------------------------------------------------------------

// MarketstoreService implements MarketstoreServer.
type MarketstoreService struct {
	Version   string
	Logger    *logger.Logger
	Publisher interfaces.IStreamPublisher

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// NewMarketstoreService creates an empty store. publisher may be nil.
func NewMarketstoreService(log *logger.Logger, publisher interfaces.IStreamPublisher) *MarketstoreService {
	return &MarketstoreService{
		Version:   DefaultVersion,
		Logger:    log,
		Publisher: publisher,
		buckets:   make(map[string]*bucket),
	}
}

// -----------------------------------------------------------------------------

func parseKey(key string) ([]string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid time bucket key %q", key)
	}
	for _, p := range parts {
		if p == "" || p == models.Wildcard {
			return nil, fmt.Errorf("invalid time bucket key %q", key)
		}
	}
	return parts, nil
}

// -----------------------------------------------------------------------------

func (s *MarketstoreService) Create(ctx context.Context, req *grpc_client.MultiCreateRequest) (*grpc_client.MultiServerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &grpc_client.MultiServerResponse{}
	for _, r := range req.Requests {
		out := &grpc_client.ServerResponse{Version: s.Version}
		resp.Responses = append(resp.Responses, out)

		if _, err := parseKey(r.Key); err != nil {
			out.Error = err.Error()
			continue
		}
		if r.RowType != "" && r.RowType != grpc_client.RowTypeFixed {
			out.Error = fmt.Sprintf("unsupported row type %q", r.RowType)
			continue
		}
		if _, exists := s.buckets[r.Key]; exists {
			out.Error = fmt.Sprintf("bucket %s already exists", r.Key)
			continue
		}
		shapes := grpc_client.ShapesFromWire(r.DataShapes)
		if err := checkShapes(shapes); err != nil {
			out.Error = err.Error()
			continue
		}
		s.buckets[r.Key] = &bucket{shapes: shapes}
		s.Logger.Info("Created bucket %s with %d columns", r.Key, len(shapes))
	}
	return resp, nil
}

func checkShapes(shapes []models.MDataShape) error {
	if len(shapes) == 0 || shapes[0].Name != "Epoch" || shapes[0].DataType != "i8" {
		return fmt.Errorf("first column must be Epoch i8")
	}
	for _, ds := range shapes {
		if _, err := utils.ColumnTypeSize(ds.DataType); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *MarketstoreService) Destroy(ctx context.Context, req *grpc_client.MultiKeyRequest) (*grpc_client.MultiServerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &grpc_client.MultiServerResponse{}
	for _, r := range req.Requests {
		out := &grpc_client.ServerResponse{Version: s.Version}
		if _, ok := s.buckets[r.Key]; !ok {
			out.Error = fmt.Sprintf("bucket %s not found", r.Key)
		} else {
			delete(s.buckets, r.Key)
			s.Logger.Info("Destroyed bucket %s", r.Key)
		}
		resp.Responses = append(resp.Responses, out)
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

func (s *MarketstoreService) Write(ctx context.Context, req *grpc_client.MultiWriteRequest) (*grpc_client.MultiServerResponse, error) {
	resp := &grpc_client.MultiServerResponse{}
	var published []models.MStreamPayload

	s.mu.Lock()
	for _, r := range req.Requests {
		if r.Data == nil || r.Data.Data == nil {
			resp.Responses = append(resp.Responses, &grpc_client.ServerResponse{Version: s.Version, Error: "write request without data"})
			continue
		}
		ds := grpc_client.DatasetFromWire(r.Data.Data)

		keys := make([]string, 0, len(r.Data.StartIndex))
		for k := range r.Data.StartIndex {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			out := &grpc_client.ServerResponse{Version: s.Version}
			resp.Responses = append(resp.Responses, out)

			payloads, err := s.writeKey(key, ds, int(r.Data.StartIndex[key]), int(r.Data.Lengths[key]))
			if err != nil {
				out.Error = err.Error()
				continue
			}
			published = append(published, payloads...)
		}
	}
	s.mu.Unlock()

	if s.Publisher != nil {
		for _, p := range published {
			s.Publisher.Publish(p)
		}
	}
	return resp, nil
}

// writeKey merges rows [start, start+length) of ds into key, replacing rows
// with the same epoch, and returns one stream payload per written row.
func (s *MarketstoreService) writeKey(key string, ds *models.MNumpyDataset, start, length int) ([]models.MStreamPayload, error) {
	if _, err := parseKey(key); err != nil {
		return nil, err
	}
	part, err := utils.SliceDataset(ds, start, length)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	b, ok := s.buckets[key]
	if !ok {
		// Writes create missing buckets from the dataset's own schema.
		shapes := make([]models.MDataShape, len(part.ColumnNames))
		for i := range shapes {
			shapes[i] = models.MDataShape{Name: part.ColumnNames[i], DataType: part.ColumnTypes[i]}
		}
		if err := checkShapes(shapes); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		b = &bucket{shapes: shapes}
		s.buckets[key] = b
	}

	// Map bucket columns onto dataset columns by name.
	colIndex := make([]int, len(b.shapes))
	for i, shape := range b.shapes {
		colIndex[i] = -1
		for j, name := range part.ColumnNames {
			if name == shape.Name && part.ColumnTypes[j] == shape.DataType {
				colIndex[i] = j
			}
		}
		if colIndex[i] < 0 {
			return nil, fmt.Errorf("%s: missing column %s %s", key, shape.Name, shape.DataType)
		}
	}

	rows, err := utils.DatasetRows(part)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	payloads := make([]models.MStreamPayload, 0, length)
	for r := 0; r < length; r++ {
		nr := row{cells: make([][]byte, len(b.shapes))}
		for i, shape := range b.shapes {
			size, _ := utils.ColumnTypeSize(shape.DataType)
			col := part.ColumnData[colIndex[i]]
			nr.cells[i] = col[r*size : (r+1)*size]
		}
		nr.epoch = rows[r]["Epoch"].(int64)
		b.insert(nr)
		payloads = append(payloads, models.MStreamPayload{Key: key, Data: rows[r]})
	}

	s.Logger.Debug("Wrote %d rows to %s", length, key)
	return payloads, nil
}

func (b *bucket) insert(r row) {
	i := sort.Search(len(b.rows), func(i int) bool { return b.rows[i].epoch >= r.epoch })
	if i < len(b.rows) && b.rows[i].epoch == r.epoch {
		b.rows[i] = r
		return
	}
	b.rows = append(b.rows, row{})
	copy(b.rows[i+1:], b.rows[i:])
	b.rows[i] = r
}

// -----------------------------------------------------------------------------

func (s *MarketstoreService) Query(ctx context.Context, req *grpc_client.MultiQueryRequest) (*grpc_client.MultiQueryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &grpc_client.MultiQueryResponse{Version: s.Version, Timezone: "UTC"}
	for _, q := range req.Requests {
		if q.IsSQLStatement {
			return nil, status.Error(codes.Unimplemented, "SQL statements are not supported")
		}
		b, ok := s.buckets[q.Destination]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "no data for %s", q.Destination)
		}
		resp.Responses = append(resp.Responses, &grpc_client.QueryResponse{Result: b.query(q)})
	}
	return resp, nil
}

// query selects rows in [EpochStart, EpochEnd]. The limit keeps the first
// rows when LimitFromStart is set and the last rows otherwise.
func (b *bucket) query(q *grpc_client.QueryRequest) *grpc_client.NumpyMultiDataset {
	lo := sort.Search(len(b.rows), func(i int) bool { return b.rows[i].epoch >= q.EpochStart })
	hi := sort.Search(len(b.rows), func(i int) bool { return b.rows[i].epoch > q.EpochEnd })
	selected := b.rows[lo:max(lo, hi)]

	if limit := int(q.LimitRecordCount); limit > 0 && len(selected) > limit {
		if q.LimitFromStart {
			selected = selected[:limit]
		} else {
			selected = selected[len(selected)-limit:]
		}
	}

	columns := make([]int, 0, len(b.shapes))
	if len(q.Columns) == 0 {
		for i := range b.shapes {
			columns = append(columns, i)
		}
	} else {
		// Epoch always comes back first.
		columns = append(columns, 0)
		for _, name := range q.Columns {
			for i, shape := range b.shapes {
				if i > 0 && shape.Name == name {
					columns = append(columns, i)
				}
			}
		}
	}

	ds := &grpc_client.NumpyDataset{Length: int32(len(selected))}
	for _, c := range columns {
		shape := b.shapes[c]
		var data []byte
		for _, r := range selected {
			data = append(data, r.cells[c]...)
		}
		if data == nil {
			data = []byte{}
		}
		ds.ColumnNames = append(ds.ColumnNames, shape.Name)
		ds.ColumnTypes = append(ds.ColumnTypes, shape.DataType)
		ds.ColumnData = append(ds.ColumnData, data)
		ds.DataShapes = append(ds.DataShapes, &grpc_client.DataShape{Name: shape.Name, Type: shape.DataType})
	}

	return &grpc_client.NumpyMultiDataset{
		Data:       ds,
		StartIndex: map[string]int32{q.Destination: 0},
		Lengths:    map[string]int32{q.Destination: int32(len(selected))},
	}
}

// -----------------------------------------------------------------------------

func (s *MarketstoreService) ListSymbols(ctx context.Context, req *grpc_client.ListSymbolsRequest) (*grpc_client.ListSymbolsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	results := []string{}
	for key := range s.buckets {
		item := key
		if models.SymbolFormat(req.Format) == models.SymbolFormatSymbol {
			item = strings.SplitN(key, "/", 2)[0]
		}
		if !seen[item] {
			seen[item] = true
			results = append(results, item)
		}
	}
	sort.Strings(results)
	return &grpc_client.ListSymbolsResponse{Results: results}, nil
}

// -----------------------------------------------------------------------------

func (s *MarketstoreService) ServerVersion(ctx context.Context, req *grpc_client.ServerVersionRequest) (*grpc_client.ServerVersionResponse, error) {
	return &grpc_client.ServerVersionResponse{Version: s.Version}, nil
}
