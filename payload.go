package aidefense

import (
	"encoding/json"
	"fmt"
)

// payloadBytes normalizes a body value into the raw bytes that get base64
// encoded on the wire. Strings become their UTF-8 bytes, byte slices pass
// through untouched, and anything else is serialized with encoding/json.
// Normalizing an already normalized value returns the same bytes, so encoding
// the same logical body twice always yields identical wire output.
func payloadBytes(field string, body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, validationErr(field, "body of type %T is not JSON-serializable: %v", body, err)
		}
		return raw, nil
	}
}

// coerceString renders a metadata value as a string. Builders use it when
// callers hand over numeric or structured values for fields the wire format
// carries as strings.
func coerceString(field string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprintf("%v", v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", validationErr(field, "value of type %T cannot be coerced to a string: %v", value, err)
		}
		return string(raw), nil
	}
}
