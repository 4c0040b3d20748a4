package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

// jqTimeout bounds a single filter evaluation.
const jqTimeout = 5 * time.Second

// ApplyFilter runs a jq expression over v and returns the produced values.
// v is round-tripped through JSON so struct results behave like the
// documents a user sees on the wire.
func ApplyFilter(expr string, v any) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}

	deadline := time.Now().Add(jqTimeout)
	var out []any
	iter := code.Run(doc)
	for {
		item, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := item.(error); ok {
			return nil, fmt.Errorf("jq: %w", err)
		}
		out = append(out, item)
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("jq expression timed out")
		}
	}
	return out, nil
}

// OutputFiltered applies a jq expression when expr is non-empty, then
// writes the result with Output. A single produced value is unwrapped.
func OutputFiltered(result any, expr string, opts OutputOptions) error {
	if expr == "" {
		return Output(result, opts)
	}
	values, err := ApplyFilter(expr, result)
	if err != nil {
		return err
	}
	if len(values) == 1 {
		return Output(values[0], opts)
	}
	return Output(values, opts)
}
