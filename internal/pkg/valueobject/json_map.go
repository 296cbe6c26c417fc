// Package valueobject holds small value types shared by entities and stores.
package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ErrScanValueNotBytes indicates the database value is not JSON text.
var ErrScanValueNotBytes = errors.New("valueobject: jsonmap scan value is not []byte")

// JSONMap is a free-form JSON object persisted in a jsonb column.
type JSONMap map[string]any

// Value implements driver.Valuer. A nil map is stored as {}.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSONMap) Scan(value any) error {
	var raw []byte

	switch v := value.(type) {
	case nil:
		*j = JSONMap{}
		return nil
	case map[string]any:
		*j = JSONMap(v)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrScanValueNotBytes
	}

	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*j = out
	return nil
}

// GetString returns the string stored at key, or "" when missing or not a string.
func (j JSONMap) GetString(key string) string {
	s, _ := j[key].(string)
	return s
}

// With returns a copy of j with key set to value.
func (j JSONMap) With(key string, value any) JSONMap {
	out := make(JSONMap, len(j)+1)
	for k, v := range j {
		out[k] = v
	}
	out[key] = value
	return out
}
