// Package transform implements C6: shaping a normalized record set into
// tabular (headers, rows) form according to a dataset's field catalog and a
// configuration's column selection (spec §4.6).
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/exportengine/engine/internal/model"
	"gonum.org/v1/gonum/floats"
)

const (
	defaultNullMarker     = ""
	defaultNumberDecimals = 2
	defaultVATRate        = 0.23
)

var defaultBooleanLabels = map[bool]string{true: "TAK", false: "NIE"}

// Options carries the formatting knobs the Transformer consults; callers
// build one via BuildOptions from an ExportConfiguration, defaulting
// whatever the configuration leaves unset.
type Options struct {
	NullMarker     string
	NumberDecimals int
	BooleanLabels  map[bool]string
	VATRate        float64
}

// BuildOptions derives transform Options from a configuration, filling in
// the spec's stated defaults for anything the configuration leaves zero.
func BuildOptions(cfg model.ExportConfiguration) Options {
	labels := cfg.BooleanLabels
	if labels == nil {
		labels = defaultBooleanLabels
	}
	return Options{
		NullMarker:     defaultNullMarker,
		NumberDecimals: defaultNumberDecimals,
		BooleanLabels:  labels,
		VATRate:        defaultVATRate,
	}
}

// Column is one derived output column.
type Column struct {
	Key    string
	Label  string
	Type   model.FieldType
	Custom *model.CustomField
}

// DeriveColumns builds the ordered column list from a configuration's
// selected field keys against the dataset map (spec §4.6 "column
// derivation" and "header resolution").
func DeriveColumns(dataset model.Dataset, selectedFields []string, customHeaders map[string]string, customFields map[string]model.CustomField) []Column {
	columns := make([]Column, 0, len(selectedFields))
	for _, key := range selectedFields {
		switch {
		case strings.HasPrefix(key, "_empty_"):
			columns = append(columns, Column{Key: key, Label: header(key, "", customHeaders), Type: model.FieldEmpty})
		case strings.HasPrefix(key, "_custom_"):
			cf, ok := customFields[key]
			if !ok {
				columns = append(columns, Column{Key: key, Label: header(key, "", customHeaders), Type: model.FieldText})
				continue
			}
			label := cf.Label
			if override, ok := customHeaders[key]; ok {
				label = override
			}
			columns = append(columns, Column{Key: key, Label: label, Type: model.FieldCustom, Custom: &cf})
		default:
			field, ok := dataset.FieldByKey(key)
			if !ok {
				columns = append(columns, Column{Key: key, Label: header(key, key, customHeaders), Type: model.FieldText})
				continue
			}
			columns = append(columns, Column{Key: key, Label: header(key, field.Label, customHeaders), Type: field.Type})
		}
	}
	return columns
}

// header resolves a column's display label: custom-header override, else
// the dataset label, else the raw key.
func header(key, datasetLabel string, customHeaders map[string]string) string {
	if override, ok := customHeaders[key]; ok {
		return override
	}
	if datasetLabel != "" {
		return datasetLabel
	}
	return key
}

// Transform shapes records into (headers, rows) per the derived columns
// (spec §4.6's operation signature). An empty column list yields ([], []),
// matching the edge case in spec §8.
func Transform(records []model.Record, columns []Column, opts Options) ([]string, [][]string) {
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Label
	}
	if len(columns) == 0 {
		return []string{}, [][]string{}
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = renderCell(rec, c, opts)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// renderCell extracts and formats one cell's value.
func renderCell(rec model.Record, c Column, opts Options) string {
	switch c.Type {
	case model.FieldEmpty:
		return opts.NullMarker
	case model.FieldCustom:
		if c.Custom == nil {
			return opts.NullMarker
		}
		return substituteCustomTemplate(c.Custom.Template, rec)
	default:
		v, ok := extract(rec, c.Key)
		if !ok || v == nil {
			return opts.NullMarker
		}
		return formatValue(v, c.Type, opts)
	}
}

// extract looks up key in rec, traversing dotted keys through nested maps
// (spec §4.6 "value extraction").
func extract(rec model.Record, key string) (any, bool) {
	parts := strings.Split(key, ".")
	var cur any = map[string]any(rec)
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// substituteCustomTemplate replaces every "{fieldKey}" occurrence in
// template with the record's value for that key (missing -> empty string).
// No nesting, expressions, or escaping (spec §4.6 "custom columns").
func substituteCustomTemplate(template string, rec model.Record) string {
	out := template
	for {
		start := strings.IndexByte(out, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(out[start:], '}')
		if end < 0 {
			break
		}
		end += start
		key := out[start+1 : end]
		v, ok := extract(rec, key)
		val := ""
		if ok && v != nil {
			val = stringify(v)
		}
		out = out[:start] + val + out[end+1:]
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// formatValue dispatches formatting by the column's declared semantic type
// (spec §4.6 "formatting by type"). Unrecognized types fall through to text
// (Design Note §9).
func formatValue(v any, t model.FieldType, opts Options) string {
	switch t {
	case model.FieldDateTime:
		return formatTime(v, "2006-01-02 15:04:05", opts.NullMarker)
	case model.FieldDate:
		return formatTime(v, "2006-01-02", opts.NullMarker)
	case model.FieldNumber:
		// Rounded to NumberDecimals places without padding: 101 -> "101".
		n, ok := toFloat(v)
		if !ok {
			return ""
		}
		return strconv.FormatFloat(floats.Round(n, opts.NumberDecimals), 'f', -1, 64)
	case model.FieldCurrency:
		return formatNumber(v, 2)
	case model.FieldBoolean:
		return formatBoolean(v, opts.BooleanLabels)
	case model.FieldArray:
		return formatArray(v)
	case model.FieldObject:
		return formatJSON(v)
	default:
		return formatText(v)
	}
}

// epochSecondsCeiling is the heuristic boundary between seconds- and
// milliseconds-since-epoch timestamps (spec §4.6: "value <= 10^10").
const epochSecondsCeiling = 10_000_000_000

func formatTime(v any, layout, nullMarker string) string {
	t, ok := parseTime(v)
	if !ok {
		return nullMarker
	}
	return t.UTC().Format(layout)
}

func parseTime(v any) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return epochToTime(int64(n)), true
	case int:
		return epochToTime(int64(n)), true
	case int64:
		return epochToTime(n), true
	case string:
		if n == "" {
			return time.Time{}, false
		}
		if epoch, err := strconv.ParseInt(n, 10, 64); err == nil {
			return epochToTime(epoch), true
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, n); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func epochToTime(epoch int64) time.Time {
	if epoch <= epochSecondsCeiling {
		return time.Unix(epoch, 0)
	}
	return time.UnixMilli(epoch)
}

func formatNumber(v any, decimals int) string {
	n, ok := toFloat(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(floats.Round(n, decimals), 'f', decimals, 64)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func formatBoolean(v any, labels map[bool]string) string {
	truthy := false
	switch n := v.(type) {
	case bool:
		truthy = n
	case float64:
		truthy = n != 0
	case int:
		truthy = n != 0
	case string:
		lower := strings.ToLower(n)
		truthy = lower == "true" || lower == "1"
	}
	return labels[truthy]
}

func formatArray(v any) string {
	items, ok := v.([]any)
	if !ok {
		return formatText(v)
	}
	parts := make([]string, len(items))
	for i, item := range items {
		switch item.(type) {
		case string, float64, int, int64, bool, nil:
			parts[i] = stringify(item)
		default:
			parts[i] = formatJSON(item)
		}
	}
	return strings.Join(parts, ", ")
}

func formatJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func formatText(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		return formatJSON(v)
	default:
		return stringify(v)
	}
}
