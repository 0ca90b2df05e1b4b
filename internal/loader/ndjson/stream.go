// Package ndjson decodes the JSON record files the warehouse COPY command
// accepts: concatenated or newline-delimited objects, or a root array of
// objects followed by optional trailing objects.
package ndjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is one decoded JSON object. Numbers are json.Number so the caller
// decides how to coerce them.
type Record struct {
	// Index is the 1-based position of the record within its source.
	Index  int
	Fields map[string]any
}

// Stream decodes records from r and calls emit for each one, in order.
//
// Streaming behavior:
//   - If the root is a JSON array, each object element is emitted one-by-one.
//   - Otherwise the input is a sequence of objects, each emitted as a record.
//   - null array elements are skipped; any other non-object value is an error.
//
// Stream stops at the first decode error or the first error returned by emit.
func Stream(ctx context.Context, r io.Reader, emit func(Record) error) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	index := 0
	emitObject := func(obj map[string]any) error {
		index++
		if err := ctx.Err(); err != nil {
			return err
		}
		return emit(Record{Index: index, Fields: obj})
	}

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("json: read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}

	switch d {
	case '[':
		if err := streamArrayOfObjects(dec, emitObject, &index); err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("json: read array end: %w", err)
		} else if end != json.Delim(']') {
			return fmt.Errorf("json: expected array end ']', got %v", end)
		}

	case '{':
		obj, err := materializeObject(dec)
		if err != nil {
			return fmt.Errorf("json: record 1: %w", err)
		}
		if err := emitObject(obj); err != nil {
			return err
		}

	default:
		return fmt.Errorf("json: unsupported root delimiter %q", d)
	}

	return streamTrailingObjects(dec, emitObject, &index)
}

func streamTrailingObjects(dec *json.Decoder, emit func(map[string]any) error, index *int) error {
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("json: record %d: %w", *index+1, err)
		}
		if obj == nil {
			continue
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
}

// streamArrayOfObjects streams elements of the current array (after '[' has
// been consumed).
func streamArrayOfObjects(dec *json.Decoder, emit func(map[string]any) error, index *int) error {
	for dec.More() {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("json: record %d: %w", *index+1, err)
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("json: record %d: array element not an object (got %T)", *index+1, raw)
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
	return nil
}

// materializeObject reads the rest of an object whose '{' has already been
// consumed.
func materializeObject(dec *json.Decoder) (map[string]any, error) {
	m := make(map[string]any)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read object key: %w", err)
		}
		k, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("object key not a string (got %T)", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("read value of %q: %w", k, err)
		}
		m[k] = v
	}
	end, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read object end: %w", err)
	}
	if end != json.Delim('}') {
		return nil, fmt.Errorf("expected '}', got %v", end)
	}
	return m, nil
}
