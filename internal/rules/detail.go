package rules

import "encoding/json"

// encodeDetail marshals an analytics detail document.
func encodeDetail(detail map[string]any) (string, error) {
	if len(detail) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
