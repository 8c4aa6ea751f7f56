// Package normalize extracts the record array from gateway responses.
//
// The gateway wraps its rows in an envelope whose shape depends on the stored procedure:
// a bare array, an object keyed by Data, data, Result, result, Records or records, an object
// holding some other array, or a single object standing for one row. Normalize hides those
// conventions behind one fixed precedence list.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ErrInvalidJSON is returned when a payload is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON payload")

// envelopeKeys are checked in this order. An empty array under an earlier key wins over a
// non-empty array under a later one.
var envelopeKeys = []string{"Data", "data", "Result", "result", "Records", "records"}

// Records is the ordered sequence of rows extracted from a gateway response.
// Elements are kept as decoded: objects are map[string]any, anything else is left untouched.
type Records []any

// Record is a single row, as a field name to untyped value mapping.
type Record map[string]any

// Empty reports whether no row was found. It cannot tell an envelope without rows from an
// envelope of an unknown shape.
func (r Records) Empty() bool {
	return len(r) == 0
}

// Objects returns the rows which are JSON objects, in order. Other elements are skipped.
func (r Records) Objects() []Record {
	objs := make([]Record, 0, len(r))
	for _, v := range r {
		switch o := v.(type) {
		case map[string]any:
			objs = append(objs, Record(o))
		case Record:
			objs = append(objs, o)
		}
	}
	return objs
}

// Normalize returns the record array held by v.
//
// The first matching rule wins:
//  1. v is an array: it is returned unchanged.
//  2. v is an object with an array under one of the envelope keys, checked in order.
//  3. v is an object with any other array value. Go maps do not keep the document order, so
//     keys are scanned in lexical order here; Decode keeps the document order.
//  4. v is an object: it is the single row.
//  5. Anything else gives no row.
func Normalize(v any) Records {
	switch t := v.(type) {
	case []any:
		return Records(t)
	case Records:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return fromObject(object{keys: keys, values: t})
	case Record:
		return Normalize(map[string]any(t))
	case object:
		return fromObject(t)
	default:
		return Records{}
	}
}

// Decode parses a gateway payload and normalizes it.
// Object keys are scanned in document order when looking for an unnamed array.
func Decode(data []byte) (Records, error) {
	v, err := decodeOrdered(data)
	if err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

// object is a JSON object decoded with its key order.
type object struct {
	keys   []string
	values map[string]any
}

func fromObject(o object) Records {
	for _, k := range envelopeKeys {
		if arr, ok := o.values[k].([]any); ok {
			return Records(arr)
		}
	}

	for _, k := range o.keys {
		if arr, ok := o.values[k].([]any); ok {
			return Records(arr)
		}
	}

	return Records{o.values}
}

// decodeOrdered decodes data, keeping the key order of a top level object only.
// Nested objects are plain maps: the envelope is never scanned deeper than one level.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var v any
	switch tok {
	case json.Delim('{'):
		o := object{values: make(map[string]any)}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected object key %v", ErrInvalidJSON, kt)
			}
			var val any
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("%w: value of %q: %v", ErrInvalidJSON, key, err)
			}
			if _, dup := o.values[key]; !dup {
				o.keys = append(o.keys, key)
			}
			o.values[key] = val
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		v = o
	case json.Delim('['):
		arr := []any{}
		for dec.More() {
			var val any
			if err := dec.Decode(&val); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		v = arr
	default:
		if d, ok := tok.(json.Delim); ok {
			return nil, fmt.Errorf("%w: unexpected delimiter %v", ErrInvalidJSON, d)
		}
		v = tok
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after top level value", ErrInvalidJSON)
	}

	return v, nil
}
