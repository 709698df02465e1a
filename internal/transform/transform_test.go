package transform

import (
	"testing"

	"github.com/exportengine/engine/internal/catalog"
	"github.com/exportengine/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformOrdersMinimalRun(t *testing.T) {
	dataset := catalog.OrdersDataset()
	columns := DeriveColumns(dataset, []string{"order_id", "date_add", "email"}, nil, nil)
	opts := BuildOptions(model.ExportConfiguration{})

	records := []model.Record{
		{"order_id": float64(101), "date_add": float64(1705312800), "email": "a@x"},
		{"order_id": float64(102), "date_add": float64(1705316400), "email": "b@x"},
	}

	headers, rows := Transform(records, columns, opts)
	require.Equal(t, []string{"Order ID", "Date added", "Email"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"101", "2024-01-15 10:00:00", "a@x"}, rows[0])
	assert.Equal(t, []string{"102", "2024-01-15 11:00:00", "b@x"}, rows[1])
}

func TestTransformBooleanFormattingWithCustomLabels(t *testing.T) {
	dataset := catalog.OrdersDataset()
	columns := DeriveColumns(dataset, []string{"want_invoice"}, nil, nil)
	opts := BuildOptions(model.ExportConfiguration{BooleanLabels: map[bool]string{true: "Y", false: "N"}})

	records := []model.Record{{"want_invoice": float64(1)}}
	_, rows := Transform(records, columns, opts)

	assert.Equal(t, "Y", rows[0][0])
}

func TestTransformEmptySelectionYieldsEmptyHeadersAndRows(t *testing.T) {
	dataset := catalog.OrdersDataset()
	columns := DeriveColumns(dataset, []string{}, nil, nil)
	opts := BuildOptions(model.ExportConfiguration{})

	headers, rows := Transform([]model.Record{{"order_id": float64(1)}}, columns, opts)
	assert.Equal(t, []string{}, headers)
	assert.Equal(t, [][]string{}, rows)
}

func TestTransformHeaderResolutionPrecedence(t *testing.T) {
	dataset := catalog.OrdersDataset()
	columns := DeriveColumns(dataset, []string{"order_id", "_empty_note", "unknown_key"},
		map[string]string{"order_id": "Order #"}, nil)

	assert.Equal(t, "Order #", columns[0].Label)
	assert.Equal(t, "_empty_note", columns[1].Label)
	assert.Equal(t, "unknown_key", columns[2].Label)
}

func TestTransformCustomColumnSubstitution(t *testing.T) {
	dataset := catalog.OrdersDataset()
	customFields := map[string]model.CustomField{
		"_custom_greeting": {Label: "Greeting", Template: "Hello {email}, order {order_id}"},
	}
	columns := DeriveColumns(dataset, []string{"_custom_greeting"}, nil, customFields)
	opts := BuildOptions(model.ExportConfiguration{})

	records := []model.Record{{"email": "a@x", "order_id": float64(7)}}
	headers, rows := Transform(records, columns, opts)

	assert.Equal(t, []string{"Greeting"}, headers)
	assert.Equal(t, "Hello a@x, order 7", rows[0][0])
}

func TestTransformIsIdempotent(t *testing.T) {
	dataset := catalog.OrdersDataset()
	columns := DeriveColumns(dataset, []string{"order_id", "date_add"}, nil, nil)
	opts := BuildOptions(model.ExportConfiguration{})
	records := []model.Record{{"order_id": float64(1), "date_add": "2024-01-15T10:00:00Z"}}

	headers1, rows1 := Transform(records, columns, opts)
	headers2, rows2 := Transform(records, columns, opts)
	assert.Equal(t, headers1, headers2)
	assert.Equal(t, rows1, rows2)
}

func TestSynthesizeOrdersFieldsComputesRollupsAndPaymentStatus(t *testing.T) {
	dataset := catalog.OrdersDataset()
	records := []model.Record{{
		"status_id":   float64(2),
		"courier_id":  float64(5),
		"payment_done": false,
		"products": []any{
			map[string]any{"quantity": 2.0, "price_netto": 50.0},
		},
	}}

	SynthesizeOrdersFields(records, dataset, nil, 0.23)

	assert.Equal(t, 1, records[0]["products_count"])
	assert.Equal(t, "100.00", records[0]["products_value_netto"])
	assert.Equal(t, "123.00", records[0]["products_value_brutto"])
	assert.Equal(t, "unpaid", records[0]["payment_status"])
	assert.Equal(t, "2", records[0]["order_status_name"])
}
