package ingest

import "encoding/json"

func encodeDetail(detail map[string]any) (string, error) {
	encoded, err := json.Marshal(detail)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
