package fallback

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is one row of a dataset payload. Numbers are kept as json.Number so
// they re-encode exactly as received.
type Record map[string]any

const (
	fieldStoreName  = "store_name"
	fieldTotalSales = "total_sales"
)

// decodeRecords parses raw as an array of objects. ok is false when raw is
// not an array; non-object elements are skipped.
func decodeRecords(raw json.RawMessage) (records []Record, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil || items == nil {
		return nil, false
	}

	records = make([]Record, 0, len(items))
	for _, item := range items {
		rd := json.NewDecoder(bytes.NewReader(item))
		rd.UseNumber()
		var rec Record
		if err := rd.Decode(&rec); err != nil || rec == nil {
			continue
		}
		records = append(records, rec)
	}
	return records, true
}

// StoreName returns the record's store field, or "".
func (r Record) StoreName() string {
	name, _ := r[fieldStoreName].(string)
	return strings.TrimSpace(name)
}

// Number returns the numeric value of field, or 0 when absent or not numeric.
func (r Record) Number(field string) float64 {
	switch v := r[field].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// withStore returns a copy of r whose store field is name.
func (r Record) withStore(name string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	out[fieldStoreName] = name
	return out
}

func encodeRecords(records []Record) json.RawMessage {
	if len(records) == 0 {
		return json.RawMessage("[]")
	}
	data, err := json.Marshal(records)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}
