package models

import (
	"fmt"
	"strconv"
	"strings"
)

// BasicConfig holds the free-form key/value data of a resolver or handler.
type BasicConfig map[string]any

func (pc *BasicConfig) GetString(key string) (string, bool) {
	if pc == nil {
		return "", false
	}
	if value, ok := (*pc)[key]; ok {
		switch v := value.(type) {
		case string:
			return v, true
		case fmt.Stringer:
			return v.String(), true
		case int, int64, float64, bool:
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}

func (pc *BasicConfig) GetStringWithDefault(key string, defaultValue string) string {
	if value, ok := pc.GetString(key); ok && len(value) > 0 {
		return value
	}
	return defaultValue
}

// GetInt accepts ints, JSON numbers and numeric strings.
func (pc *BasicConfig) GetInt(key string) (int, bool) {
	if pc == nil {
		return 0, false
	}
	if value, ok := (*pc)[key]; ok {
		switch v := value.(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		case string:
			if intValue, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return intValue, true
			}
		}
	}
	return 0, false
}

func (pc *BasicConfig) GetIntWithDefault(key string, defaultValue int) int {
	if value, ok := pc.GetInt(key); ok {
		return value
	}
	return defaultValue
}

// GetBool accepts booleans and the strings "1", "true", "True".
func (pc *BasicConfig) GetBool(key string) (bool, bool) {
	if pc == nil {
		return false, false
	}
	if value, ok := (*pc)[key]; ok {
		switch v := value.(type) {
		case bool:
			return v, true
		case int:
			return v != 0, true
		case float64:
			return v != 0, true
		case string:
			if boolValue, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return boolValue, true
			}
		}
	}
	return false, false
}

func (pc *BasicConfig) GetBoolWithDefault(key string, defaultValue bool) bool {
	if value, ok := pc.GetBool(key); ok {
		return value
	}
	return defaultValue
}

func (pc *BasicConfig) GetMap(key string) (map[string]any, bool) {
	if pc == nil {
		return nil, false
	}
	if value, ok := (*pc)[key]; ok {
		if mapValue, ok := value.(map[string]any); ok {
			return mapValue, true
		}
	}
	return nil, false
}

// GetStringMap returns a map of strings, converting non string values.
func (pc *BasicConfig) GetStringMap(key string) (map[string]string, bool) {
	if pc == nil {
		return nil, false
	}
	value, ok := (*pc)[key]
	if !ok {
		return nil, false
	}
	switch v := value.(type) {
	case map[string]string:
		return v, true
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = fmt.Sprintf("%v", item)
		}
		return out, true
	}
	return nil, false
}

// GetStringSlice accepts string slices, generic slices and comma separated strings.
func (pc *BasicConfig) GetStringSlice(key string) ([]string, bool) {
	if pc == nil {
		return nil, false
	}
	if value, ok := (*pc)[key]; ok {
		switch v := value.(type) {
		case []string:
			return v, true
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				out = append(out, fmt.Sprintf("%v", item))
			}
			return out, true
		case string:
			var out []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); len(part) > 0 {
					out = append(out, part)
				}
			}
			return out, true
		}
	}
	return nil, false
}

func (pc *BasicConfig) AsMap() map[string]any {
	if pc == nil {
		return map[string]any{}
	}
	return map[string]any(*pc)
}

// Clone returns a shallow copy.
func (pc *BasicConfig) Clone() BasicConfig {
	out := BasicConfig{}
	if pc == nil {
		return out
	}
	for key, value := range *pc {
		out[key] = value
	}
	return out
}

func (pc *BasicConfig) SetKeyWithValue(key string, value any) {
	if pc == nil {
		return
	}
	if *pc == nil {
		*pc = BasicConfig{}
	}
	(*pc)[key] = value
}

func (pc *BasicConfig) Update(updateMap map[string]any) {
	if pc == nil {
		return
	}
	if *pc == nil {
		*pc = BasicConfig{}
	}
	for key, value := range updateMap {
		(*pc)[key] = value
	}
}

// ConvertVersionToString normalises a version read from YAML or JSON, where
// "1.0" may arrive as a float.
func ConvertVersionToString(v any) string {
	switch val := v.(type) {
	case nil:
		return "1.0"
	case string:
		if len(val) == 0 {
			return "1.0"
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
