package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Traits is an open mapping of string keys to a closed set of value shapes:
// string, number (json.Number), boolean, or a nested mapping of the same.
// Arrays and nulls are rejected at decode time so merge semantics stay
// well-defined.
type Traits map[string]any

// DecodeTraits parses a raw JSON payload into a trait bag. A nil or empty
// payload yields an empty bag. Non-object payloads and disallowed value
// shapes are rejected with ErrValidation.
func DecodeTraits(raw json.RawMessage) (Traits, error) {
	if len(raw) == 0 {
		return Traits{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON payload", ErrValidation)
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrValidation)
	}
	if err := validateBag(m, ""); err != nil {
		return nil, err
	}
	return Traits(m), nil
}

func validateBag(m map[string]any, path string) error {
	for k, v := range m {
		key := k
		if path != "" {
			key = path + "." + k
		}
		switch val := v.(type) {
		case string, bool, json.Number:
		case map[string]any:
			if err := validateBag(val, key); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported value for %q (allowed: string, number, boolean, object)", ErrValidation, key)
		}
	}
	return nil
}

// Merge returns a shallow merge of t with other: keys in other overwrite keys
// of the same name in t, sibling keys are retained. Neither input is mutated.
func (t Traits) Merge(other Traits) Traits {
	merged := make(Traits, len(t)+len(other))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// JSON renders the bag for storage. An empty or nil bag becomes "{}".
func (t Traits) JSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(t))
}
