package config

import (
	"strings"
)

// secretKeys lists the dot-separated keys whose values are masked in
// listings and echoes.
var secretKeys = map[string]bool{
	"llm.api_key":    true,
	"brave.api_key":  true,
	"telegram.token": true,
}

// IsSecretKey reports whether the dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into a flat map keyed by dot-separated
// paths, so {"llm": {"provider": "openai"}} becomes
// {"llm.provider": "openai"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			out[key] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten: dot-separated keys become nested
// maps. A scalar previously stored at an intermediate path is replaced
// by a map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets returns a copy of the flat map with credential values
// reduced to "***" plus the last 4 characters. Empty values pass
// through so an unset key still reads as unset.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, isString := v.(string)
		if !secretKeys[k] || !isString || s == "" {
			out[k] = v
			continue
		}
		out[k] = maskValue(s)
	}
	return out
}

func maskValue(s string) string {
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}
