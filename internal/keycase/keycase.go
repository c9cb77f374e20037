// Package keycase converts JSON object keys between snake_case and
// camelCase.
package keycase

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
)

// Key cases a report can be written in.
const (
	Snake = "snake"
	Camel = "camel"
)

// ToSnake converts camelCase or PascalCase to snake_case. Acronyms stay
// together: "tradeID" becomes "trade_id", "HTTPStatus" becomes
// "http_status". Digits are split off as their own word. Keys that are not
// identifiers with a lowercase letter, such as "AAPL", are returned as is.
func ToSnake(s string) string {
	if !identifier(s) || !strings.ContainsFunc(s, unicode.IsLower) {
		return s
	}
	return strcase.ToSnake(s)
}

// ToCamel converts snake_case to lower camelCase. Keys without an
// underscore or with an uppercase letter are returned as is.
func ToCamel(s string) string {
	if !identifier(s) || !strings.Contains(s, "_") || strings.ContainsFunc(s, unicode.IsUpper) {
		return s
	}
	return strcase.ToLowerCamel(s)
}

func identifier(s string) bool {
	for _, r := range s {
		switch {
		case r == '_':
		case r > unicode.MaxASCII:
			return false
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			return false
		}
	}
	return true
}

// ConvertKeys rewrites every object key in a decoded JSON value with fn.
// Values are untouched.
//
// When two keys of one object convert to the same key, a key already in the
// target form wins; otherwise the lexically smaller original wins.
func ConvertKeys(v any, fn func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		src := make(map[string]string, len(t))
		for k, val := range t {
			key := fn(k)
			if prev, taken := src[key]; taken && !precedes(k, prev, key) {
				continue
			}
			src[key] = k
			out[key] = ConvertKeys(val, fn)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = ConvertKeys(val, fn)
		}
		return out
	default:
		return v
	}
}

func precedes(k, prev, key string) bool {
	if (k == key) != (prev == key) {
		return k == key
	}
	return k < prev
}
