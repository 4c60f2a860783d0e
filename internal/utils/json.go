package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape is json.Marshal without HTML escaping, so service names such
// as "Savings Plans for AWS Compute usage <preview>" stay readable in cache
// blobs and prompts.
func MarshalNoEscape(v any) ([]byte, error) {
	return encodeNoEscape(v, "")
}

// MarshalIndentNoEscape is MarshalNoEscape with each level indented by indent.
func MarshalIndentNoEscape(v any, indent string) ([]byte, error) {
	return encodeNoEscape(v, indent)
}

func encodeNoEscape(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
