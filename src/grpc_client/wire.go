package grpc_client

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages of the proto.Marketstore service. Field numbers follow
// marketstore's proto/marketstore.proto; unknown fields are skipped.

// -----------------------------------------------------------------------------
// Message interface
// -----------------------------------------------------------------------------

type Message interface {
	MarshalWire() []byte
	UnmarshalWire(b []byte) error
}

// -----------------------------------------------------------------------------
// Encoding helpers
// -----------------------------------------------------------------------------

type encoder struct {
	b []byte
}

func (e *encoder) str(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

func (e *encoder) strs(num protowire.Number, list []string) {
	for _, s := range list {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendString(e.b, s)
	}
}

func (e *encoder) blobs(num protowire.Number, list [][]byte) {
	for _, v := range list {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendBytes(e.b, v)
	}
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) int64(num protowire.Number, v int64) { e.varint(num, uint64(v)) }
func (e *encoder) int32(num protowire.Number, v int32) { e.varint(num, uint64(int64(v))) }
func (e *encoder) bool(num protowire.Number, v bool)   { e.varint(num, protowire.EncodeBool(v)) }

func (e *encoder) msg(num protowire.Number, m Message) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, m.MarshalWire())
}

// stringInt32Map writes map<string,int32> entries in key order.
func (e *encoder) stringInt32Map(num protowire.Number, m map[string]int32) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := encoder{}
		entry.str(1, k)
		entry.int32(2, m[k])
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendBytes(e.b, entry.b)
	}
}

// -----------------------------------------------------------------------------
// Decoding helpers
// -----------------------------------------------------------------------------

// field is one decoded tag/value pair handed to a message's field switch.
type field struct {
	num protowire.Number
	typ protowire.Type
	raw []byte // bytes value for BytesType
	v   uint64 // varint value for VarintType
}

func (f field) str() string   { return string(f.raw) }
func (f field) int64() int64  { return int64(f.v) }
func (f field) int32() int32  { return int32(f.v) }
func (f field) bool() bool    { return protowire.DecodeBool(f.v) }
func (f field) blob() []byte  { return append([]byte{}, f.raw...) }
func (f field) isBytes() bool { return f.typ == protowire.BytesType }

// walk calls fn for every varint or length-delimited field; other wire types
// are skipped.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			f.v = v
			n = m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			f.raw = v
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
			continue
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
	}
	return nil
}

func decodeStringInt32Entry(raw []byte) (string, int32, error) {
	var (
		k string
		v int32
	)
	err := walk(raw, func(f field) error {
		switch f.num {
		case 1:
			k = f.str()
		case 2:
			v = f.int32()
		}
		return nil
	})
	return k, v, err
}

// -----------------------------------------------------------------------------
// Datasets
// -----------------------------------------------------------------------------

type DataShape struct {
	Name string
	Type string
}

func (m *DataShape) MarshalWire() []byte {
	e := encoder{}
	e.str(1, m.Name)
	e.str(2, m.Type)
	return e.b
}

func (m *DataShape) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.Type = f.str()
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type NumpyDataset struct {
	ColumnTypes []string
	ColumnNames []string
	ColumnData  [][]byte
	Length      int32
	DataShapes  []*DataShape
}

func (m *NumpyDataset) MarshalWire() []byte {
	e := encoder{}
	e.strs(1, m.ColumnTypes)
	e.strs(2, m.ColumnNames)
	e.blobs(3, m.ColumnData)
	e.int32(4, m.Length)
	for _, ds := range m.DataShapes {
		e.msg(5, ds)
	}
	return e.b
}

func (m *NumpyDataset) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ColumnTypes = append(m.ColumnTypes, f.str())
		case 2:
			m.ColumnNames = append(m.ColumnNames, f.str())
		case 3:
			m.ColumnData = append(m.ColumnData, f.blob())
		case 4:
			m.Length = f.int32()
		case 5:
			ds := &DataShape{}
			if err := ds.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.DataShapes = append(m.DataShapes, ds)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type NumpyMultiDataset struct {
	Data       *NumpyDataset
	StartIndex map[string]int32
	Lengths    map[string]int32
}

func (m *NumpyMultiDataset) MarshalWire() []byte {
	e := encoder{}
	if m.Data != nil {
		e.msg(1, m.Data)
	}
	e.stringInt32Map(2, m.StartIndex)
	e.stringInt32Map(3, m.Lengths)
	return e.b
}

func (m *NumpyMultiDataset) UnmarshalWire(b []byte) error {
	m.StartIndex = map[string]int32{}
	m.Lengths = map[string]int32{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Data = &NumpyDataset{}
			return m.Data.UnmarshalWire(f.raw)
		case 2, 3:
			k, v, err := decodeStringInt32Entry(f.raw)
			if err != nil {
				return err
			}
			if f.num == 2 {
				m.StartIndex[k] = v
			} else {
				m.Lengths[k] = v
			}
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// Query
// -----------------------------------------------------------------------------

type QueryRequest struct {
	IsSQLStatement   bool
	SQLStatement     string
	Destination      string
	EpochStart       int64
	EpochStartNanos  int64
	EpochEnd         int64
	EpochEndNanos    int64
	LimitRecordCount int32
	LimitFromStart   bool
	Columns          []string
	Functions        []string
}

func (m *QueryRequest) MarshalWire() []byte {
	e := encoder{}
	e.bool(1, m.IsSQLStatement)
	e.str(2, m.SQLStatement)
	e.str(3, m.Destination)
	e.int64(4, m.EpochStart)
	e.int64(5, m.EpochStartNanos)
	e.int64(6, m.EpochEnd)
	e.int64(7, m.EpochEndNanos)
	e.int32(8, m.LimitRecordCount)
	e.bool(9, m.LimitFromStart)
	e.strs(10, m.Columns)
	e.strs(11, m.Functions)
	return e.b
}

func (m *QueryRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.IsSQLStatement = f.bool()
		case 2:
			m.SQLStatement = f.str()
		case 3:
			m.Destination = f.str()
		case 4:
			m.EpochStart = f.int64()
		case 5:
			m.EpochStartNanos = f.int64()
		case 6:
			m.EpochEnd = f.int64()
		case 7:
			m.EpochEndNanos = f.int64()
		case 8:
			m.LimitRecordCount = f.int32()
		case 9:
			m.LimitFromStart = f.bool()
		case 10:
			m.Columns = append(m.Columns, f.str())
		case 11:
			m.Functions = append(m.Functions, f.str())
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type MultiQueryRequest struct {
	Requests []*QueryRequest
}

func (m *MultiQueryRequest) MarshalWire() []byte {
	e := encoder{}
	for _, r := range m.Requests {
		e.msg(1, r)
	}
	return e.b
}

func (m *MultiQueryRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 && f.isBytes() {
			r := &QueryRequest{}
			if err := r.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.Requests = append(m.Requests, r)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type QueryResponse struct {
	Result *NumpyMultiDataset
}

func (m *QueryResponse) MarshalWire() []byte {
	e := encoder{}
	if m.Result != nil {
		e.msg(1, m.Result)
	}
	return e.b
}

func (m *QueryResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 && f.isBytes() {
			m.Result = &NumpyMultiDataset{}
			return m.Result.UnmarshalWire(f.raw)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type MultiQueryResponse struct {
	Responses []*QueryResponse
	Version   string
	Timezone  string
}

func (m *MultiQueryResponse) MarshalWire() []byte {
	e := encoder{}
	for _, r := range m.Responses {
		e.msg(1, r)
	}
	e.str(2, m.Version)
	e.str(3, m.Timezone)
	return e.b
}

func (m *MultiQueryResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			r := &QueryResponse{}
			if err := r.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.Responses = append(m.Responses, r)
		case 2:
			m.Version = f.str()
		case 3:
			m.Timezone = f.str()
		}
		return nil
	})
}

// -----------------------------------------------------------------------------
// Write / Create / Destroy
// -----------------------------------------------------------------------------

type WriteRequest struct {
	Data             *NumpyMultiDataset
	IsVariableLength bool
}

func (m *WriteRequest) MarshalWire() []byte {
	e := encoder{}
	if m.Data != nil {
		e.msg(1, m.Data)
	}
	e.bool(2, m.IsVariableLength)
	return e.b
}

func (m *WriteRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Data = &NumpyMultiDataset{}
			return m.Data.UnmarshalWire(f.raw)
		case 2:
			m.IsVariableLength = f.bool()
		}
		return nil
	})
}

type MultiWriteRequest struct {
	Requests []*WriteRequest
}

func (m *MultiWriteRequest) MarshalWire() []byte {
	e := encoder{}
	for _, r := range m.Requests {
		e.msg(1, r)
	}
	return e.b
}

func (m *MultiWriteRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 && f.isBytes() {
			r := &WriteRequest{}
			if err := r.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.Requests = append(m.Requests, r)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type CreateRequest struct {
	Key        string
	DataShapes []*DataShape
	RowType    string
}

func (m *CreateRequest) MarshalWire() []byte {
	e := encoder{}
	e.str(1, m.Key)
	for _, ds := range m.DataShapes {
		e.msg(2, ds)
	}
	e.str(3, m.RowType)
	return e.b
}

func (m *CreateRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Key = f.str()
		case 2:
			ds := &DataShape{}
			if err := ds.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.DataShapes = append(m.DataShapes, ds)
		case 3:
			m.RowType = f.str()
		}
		return nil
	})
}

type MultiCreateRequest struct {
	Requests []*CreateRequest
}

func (m *MultiCreateRequest) MarshalWire() []byte {
	e := encoder{}
	for _, r := range m.Requests {
		e.msg(1, r)
	}
	return e.b
}

func (m *MultiCreateRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 && f.isBytes() {
			r := &CreateRequest{}
			if err := r.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.Requests = append(m.Requests, r)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type KeyRequest struct {
	Key string
}

func (m *KeyRequest) MarshalWire() []byte {
	e := encoder{}
	e.str(1, m.Key)
	return e.b
}

func (m *KeyRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Key = f.str()
		}
		return nil
	})
}

type MultiKeyRequest struct {
	Requests []*KeyRequest
}

func (m *MultiKeyRequest) MarshalWire() []byte {
	e := encoder{}
	for _, r := range m.Requests {
		e.msg(1, r)
	}
	return e.b
}

func (m *MultiKeyRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 && f.isBytes() {
			r := &KeyRequest{}
			if err := r.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.Requests = append(m.Requests, r)
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type ServerResponse struct {
	Error   string
	Version string
}

func (m *ServerResponse) MarshalWire() []byte {
	e := encoder{}
	e.str(1, m.Error)
	e.str(2, m.Version)
	return e.b
}

func (m *ServerResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Error = f.str()
		case 2:
			m.Version = f.str()
		}
		return nil
	})
}

type MultiServerResponse struct {
	Responses []*ServerResponse
}

func (m *MultiServerResponse) MarshalWire() []byte {
	e := encoder{}
	for _, r := range m.Responses {
		e.msg(1, r)
	}
	return e.b
}

func (m *MultiServerResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 && f.isBytes() {
			r := &ServerResponse{}
			if err := r.UnmarshalWire(f.raw); err != nil {
				return err
			}
			m.Responses = append(m.Responses, r)
		}
		return nil
	})
}

// FirstError returns the first non-empty server-side error message.
func (m *MultiServerResponse) FirstError() string {
	for _, r := range m.Responses {
		if r.Error != "" {
			return r.Error
		}
	}
	return ""
}

// -----------------------------------------------------------------------------
// Symbols / Version
// -----------------------------------------------------------------------------

type ListSymbolsRequest struct {
	Format int32
}

func (m *ListSymbolsRequest) MarshalWire() []byte {
	e := encoder{}
	e.int32(1, m.Format)
	return e.b
}

func (m *ListSymbolsRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Format = f.int32()
		}
		return nil
	})
}

type ListSymbolsResponse struct {
	Results []string
}

func (m *ListSymbolsResponse) MarshalWire() []byte {
	e := encoder{}
	e.strs(1, m.Results)
	return e.b
}

func (m *ListSymbolsResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Results = append(m.Results, f.str())
		}
		return nil
	})
}

// -----------------------------------------------------------------------------

type ServerVersionRequest struct{}

func (m *ServerVersionRequest) MarshalWire() []byte        { return nil }
func (m *ServerVersionRequest) UnmarshalWire([]byte) error { return nil }

type ServerVersionResponse struct {
	Version string
}

func (m *ServerVersionResponse) MarshalWire() []byte {
	e := encoder{}
	e.str(1, m.Version)
	return e.b
}

func (m *ServerVersionResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Version = f.str()
		}
		return nil
	})
}
