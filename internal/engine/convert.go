package engine

import "encoding/json"

// EncodeValue converts a task result value to bytes for persistence or the
// caller boundary. Strings and byte slices pass through; everything else is
// JSON-encoded. Unencodable values yield nil, which callers treat as "no
// data".
func EncodeValue(v any) []byte {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []byte(val)
	case []byte:
		return val
	default:
		buf, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return buf
	}
}
