// Package sink writes extracted records, one item per call, as soon as they
// are produced.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("sink closed")

// Data types used as the _dataType discriminator.
const (
	DataReviews = "reviews"
	DataSearch  = "search"
)

// DataTypeKey is the key added to each record's JSON object.
const DataTypeKey = "_dataType"

var itemsPushed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "g2_sink_items_total",
		Help: "Total items pushed to a sink by sink and data type",
	},
	[]string{"sink", "data_type"},
)

// Sink receives items.
type Sink interface {
	Push(ctx context.Context, item Item) error
	Close() error
}

// Item is one record with its data type.
type Item struct {
	DataType string
	RunID    uuid.UUID
	// Record must marshal to a JSON object.
	Record any
}

// MarshalJSON encodes the record's object with the _dataType key appended.
func (it Item) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(it.Record)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", it.DataType, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return nil, fmt.Errorf("%s record is not a JSON object", it.DataType)
	}

	dt, err := json.Marshal(it.DataType)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.Grow(len(raw) + len(DataTypeKey) + len(dt) + 4)
	b.Write(raw[:len(raw)-1])
	if len(bytes.TrimSpace(raw[1:len(raw)-1])) > 0 {
		b.WriteByte(',')
	}
	b.WriteString(`"` + DataTypeKey + `":`)
	b.Write(dt)
	b.WriteByte('}')
	return b.Bytes(), nil
}
