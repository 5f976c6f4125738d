package normalizer

import (
	"strconv"
	"strings"

	"github.com/aistocker/quotehub/internal/quote"
)

// Raw payload helpers shared by the per-provider normalizers. Providers
// disagree on key names, so every accessor takes alternates in priority
// order. Empty strings and the literal "-" placeholder count as absent.

// FloatField returns the first key that holds a parseable number, or nil.
func FloatField(raw map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return quote.Float(n)
		case int:
			return quote.Float(float64(n))
		case int64:
			return quote.Float(float64(n))
		case string:
			s := strings.TrimSpace(n)
			if s == "" || s == "-" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return quote.Float(f)
			}
		}
	}
	return nil
}

// IntField is FloatField for integer fields; fractional values truncate.
func IntField(raw map[string]any, keys ...string) *int64 {
	f := FloatField(raw, keys...)
	if f == nil {
		return nil
	}
	return quote.Int(int64(*f))
}

// StringField returns the first key with a non-blank string form.
func StringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
	}
	return ""
}

// ExtractCode pulls the instrument code out of a payload, trying the
// industry-convention key first, then generic alternates, and stripping a
// leading venue prefix (sh/sz/bj). The 6-digit form is enforced here so
// every normalizer rejects bad identity the same way.
func ExtractCode(source quote.Source, raw map[string]any) (string, error) {
	code := StringField(raw, "f12", "code", "symbol", "secu_code")
	if code == "" {
		if f := FloatField(raw, "f12", "code", "symbol", "secu_code"); f != nil {
			code = strconv.FormatInt(int64(*f), 10)
		}
	}
	if len(code) > 6 {
		for _, prefix := range []string{"sh", "sz", "bj"} {
			if strings.HasPrefix(strings.ToLower(code), prefix) {
				code = code[2:]
				break
			}
		}
	}
	if code == "" {
		return "", &NormalizationError{Source: source, Reason: "payload has no instrument code"}
	}
	if !quote.ValidCode(code) {
		return "", &NormalizationError{Source: source, Reason: "instrument code is not 6 digits: " + code}
	}
	return code, nil
}

// ExtractName pulls the display name out of a payload.
func ExtractName(raw map[string]any) string {
	return StringField(raw, "f14", "name", "stock_name")
}
