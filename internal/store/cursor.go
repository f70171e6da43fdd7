package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"tenantcore-backend/internal/index"
)

// cursorEnvelope is the serialized form of a pagination token. The token is
// bound to the index that produced it; a cursor replayed against a different
// index is rejected rather than silently misinterpreted.
type cursorEnvelope struct {
	Index   string          `json:"index"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeCursor wraps a driver-specific continuation payload into an opaque
// token. Returns "" when the payload is nil.
func EncodeCursor(name index.Name, payload any) string {
	if payload == nil {
		return ""
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	data, err := json.Marshal(cursorEnvelope{Index: string(name), Payload: raw})
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor unwraps a token previously produced by EncodeCursor for the
// same index and unmarshals its payload into out. An empty token yields
// (false, nil): the query starts from the beginning.
func DecodeCursor(token string, name index.Name, out any) (bool, error) {
	if token == "" {
		return false, nil
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return false, fmt.Errorf("invalid cursor format: %w", err)
	}
	var env cursorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("invalid cursor data: %w", err)
	}
	if env.Index != string(name) {
		return false, fmt.Errorf("cursor belongs to index %q, query uses %q", env.Index, name)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return false, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return true, nil
}
