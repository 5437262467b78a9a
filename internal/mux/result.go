// ABOUTME: Decodes raw JSON-RPC results into caller-supplied structs
// ABOUTME: Uses weakly-typed mapstructure decoding for object results

package mux

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// decodeResult fills resultPtr from a raw result value. Object results go
// through mapstructure with json tags and weak typing, so numeric fields
// decode into int targets without an intermediate struct; everything else
// unmarshals directly.
func decodeResult(raw json.RawMessage, resultPtr any) error {
	if resultPtr == nil {
		return errors.New("mux: result pointer is nil")
	}
	ptr := reflect.ValueOf(resultPtr)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return errors.New("mux: result must be a non-nil pointer")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return err
	}

	if m, ok := value.(map[string]any); ok {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			Result:           resultPtr,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return err
		}
		return decoder.Decode(m)
	}

	return json.Unmarshal(raw, resultPtr)
}
