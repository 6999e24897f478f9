package models

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultQueryLimit int32 = 1000
)

// MQueryRequest targets a single time bucket key.
type MQueryRequest struct {
	Destination      string
	EpochStart       int64
	EpochEnd         int64
	LimitRecordCount int32
	LimitFromStart   bool
	Columns          []string
}

// -----------------------------------------------------------------------------
// Builder
// -----------------------------------------------------------------------------

type QueryRequestBuilder struct {
	symbol    string
	timeframe string
	attrGroup string
	start     *int64
	end       *int64
	limit     *int32
	fromStart bool
	columns   []string
}

func NewQueryRequest() *QueryRequestBuilder {
	return &QueryRequestBuilder{}
}

func (b *QueryRequestBuilder) Symbol(symbol string) *QueryRequestBuilder {
	b.symbol = symbol
	return b
}

func (b *QueryRequestBuilder) Timeframe(timeframe string) *QueryRequestBuilder {
	b.timeframe = timeframe
	return b
}

func (b *QueryRequestBuilder) AttrGroup(attrGroup string) *QueryRequestBuilder {
	b.attrGroup = attrGroup
	return b
}

func (b *QueryRequestBuilder) StartTime(epoch int64) *QueryRequestBuilder {
	b.start = &epoch
	return b
}

func (b *QueryRequestBuilder) EndTime(epoch int64) *QueryRequestBuilder {
	b.end = &epoch
	return b
}

func (b *QueryRequestBuilder) Limit(limit int32) *QueryRequestBuilder {
	b.limit = &limit
	return b
}

func (b *QueryRequestBuilder) LimitFromStart(fromStart bool) *QueryRequestBuilder {
	b.fromStart = fromStart
	return b
}

func (b *QueryRequestBuilder) Columns(columns ...string) *QueryRequestBuilder {
	b.columns = append(b.columns, columns...)
	return b
}

// -----------------------------------------------------------------------------

// Build applies defaults (whole time range, 1000 rows) and validates the key parts.
func (b *QueryRequestBuilder) Build() (*MQueryRequest, error) {
	if b.symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if b.timeframe == "" {
		return nil, errors.New("timeframe is required")
	}
	if b.attrGroup == "" {
		return nil, errors.New("attribute group is required")
	}

	req := &MQueryRequest{
		Destination:      BucketKey(b.symbol, b.timeframe, b.attrGroup),
		EpochStart:       0,
		EpochEnd:         math.MaxInt64,
		LimitRecordCount: DefaultQueryLimit,
		LimitFromStart:   b.fromStart,
		Columns:          b.columns,
	}
	if b.start != nil {
		req.EpochStart = *b.start
	}
	if b.end != nil {
		req.EpochEnd = *b.end
	}
	if b.limit != nil {
		req.LimitRecordCount = *b.limit
	}
	if req.EpochStart > req.EpochEnd {
		return nil, fmt.Errorf("start %d is after end %d", req.EpochStart, req.EpochEnd)
	}
	return req, nil
}

// -----------------------------------------------------------------------------

// BucketKey joins the three parts of a time bucket key.
func BucketKey(symbol, timeframe, attrGroup string) string {
	return fmt.Sprintf("%s/%s/%s", symbol, timeframe, attrGroup)
}
