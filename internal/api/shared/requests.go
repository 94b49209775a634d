package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// maxRequestBody caps request bodies on the trigger surface. Nothing here
// legitimately sends large payloads.
const maxRequestBody = 1 << 20 // 1 MiB

// DecodeJSON decodes a JSON request body into dst, rejecting oversized
// bodies and trailing garbage.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// A second document after the first is a malformed request.
	if dec.More() {
		return errors.New("request body must contain a single JSON document")
	}
	return nil
}
