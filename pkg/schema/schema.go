package schema

import (
	"encoding/json"

	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

// Validate checks that every name in requiredFields is present as a key
// in obj. It checks presence only, not type or non-emptiness, and fails
// fast on the first missing field. Side-effect free.
func Validate(obj map[string]json.RawMessage, requiredFields []string) error {
	for _, field := range requiredFields {
		if _, ok := obj[field]; !ok {
			return apperrors.NewMalformedResponseError("missing required field: "+field, nil)
		}
	}
	return nil
}

// Decode parses raw JSON into a key map and validates the required
// fields before unmarshalling into out. A parse failure or missing key
// is a malformed-response error; it is never retried.
func Decode(data []byte, requiredFields []string, out interface{}) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return apperrors.NewMalformedResponseError("invalid JSON payload", err)
	}
	if err := Validate(keys, requiredFields); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewMalformedResponseError("payload does not match schema", err)
	}
	return nil
}
