// ABOUTME: Typed decoding of named params into handler-defined structs
// ABOUTME: Weakly-typed mapstructure decoding keyed by json tags

package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/harper/rpcmux/internal/rpcerr"
)

// DecodeParams fills ptr from a named-params map. Decode failures come
// back as Invalid-Params errors so handlers can return them directly.
func DecodeParams(kwargs map[string]json.RawMessage, ptr any) error {
	values := make(map[string]any, len(kwargs))
	for key, raw := range kwargs {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return rpcerr.New(rpcerr.CodeInvalidParams, fmt.Sprintf("param %q is malformed", key))
		}
		values[key] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           ptr,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(values); err != nil {
		return rpcerr.New(rpcerr.CodeInvalidParams, err.Error())
	}
	return nil
}
