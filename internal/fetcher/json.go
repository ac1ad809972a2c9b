package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}].
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		decoder.UseNumber()

		// Expect opening bracket
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		// Consume closing bracket
		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// readJSONRecords flattens an array of objects into header-first records.
// Columns are the first object's keys in sorted order, followed by keys first
// seen in later objects. Nested values are kept as their JSON text.
func readJSONRecords(ctx context.Context, r io.Reader) ([][]string, error) {
	objCh, errCh := DecodeJSONArray[map[string]any](ctx, r)

	var (
		header []string
		index  = make(map[string]int)
		rows   []map[string]any
	)
	for obj := range objCh {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			if _, ok := index[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			index[k] = len(header)
			header = append(header, k)
		}
		rows = append(rows, obj)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if len(header) == 0 {
		return nil, nil
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, obj := range rows {
		rec := make([]string, len(header))
		for k, v := range obj {
			rec[index[k]] = jsonText(v)
		}
		records = append(records, rec)
	}
	return records, nil
}

func jsonText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
