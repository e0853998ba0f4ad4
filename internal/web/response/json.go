package response

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ContentTypeJSON is the content type of every JSON response.
const ContentTypeJSON = "application/json; charset=utf-8"

// RenderJSON encodes v as the response body.
func RenderJSON(w http.ResponseWriter, statusCode int, v any) {
	if err := writeJSON(w, statusCode, v); err != nil {
		RenderInternalError(w)
	}
}

// RenderRawJSON writes an already encoded JSON body.
func RenderRawJSON(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	w.Write(body)
}

// Marshal encodes v without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	body, err := Marshal(v)
	if err != nil {
		return err
	}
	RenderRawJSON(w, statusCode, body)
	return nil
}
