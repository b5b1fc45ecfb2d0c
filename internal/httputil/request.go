package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"editron/internal/config"
)

// ParseJSON decodes the request body into dest, capping its size.
// Unknown fields are tolerated so clients can send extra metadata;
// validation happens downstream on the decoded struct.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
