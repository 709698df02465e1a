package enrich

import "context"

// Caller is the subset of upstream.Client an enricher needs. Declared here,
// mirroring internal/fetch's Caller, so enrichers are testable against a
// fake without standing up HTTP infrastructure.
type Caller interface {
	Call(ctx context.Context, method string, params any) (map[string]any, error)
}

// asSlice coerces an arbitrary upstream response field into a slice,
// tolerating absence (spec §6: "tolerates missing/extra fields").
func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// asMap coerces an arbitrary upstream response field into a map, tolerating
// absence.
func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// asString returns v if it is a string; nil and non-string values yield "".
func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// asFloat coerces an arbitrary numeric value (JSON numbers decode as
// float64) to a float64, tolerating absence.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
