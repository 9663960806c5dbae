package debuginfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// marshalTagged encodes v as a JSON object and prepends a "type" member
// holding tag. v must encode to an object and must not itself implement
// json.Marshaler, or the call would recurse.
func marshalTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("tagged value %s did not encode to an object", tag)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(tag))
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 1 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// readTag extracts the "type" member of a tagged JSON object.
func readTag(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	if head.Type == "" {
		return "", fmt.Errorf("missing \"type\" tag in %s", truncate(data))
	}
	return head.Type, nil
}

// decodeAs decodes data into a fresh T. The "type" member is ignored by the
// standard decoder because T has no field for it.
func decodeAs[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func truncate(data []byte) string {
	const limit = 64
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
