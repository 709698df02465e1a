package catalog

import "github.com/exportengine/engine/internal/model"

// DefaultCapabilities returns the capability declarations for the engine's
// ten recognized enrichers (spec §4.4), including the dependency the
// tracking enricher has on packages having already flattened shipments into
// numbered columns (Design Note §9).
func DefaultCapabilities() []Capability {
	return []Capability{
		{Tag: "packages"},
		{Tag: "documents"},
		{Tag: "inventory"},
		{Tag: "stock"},
		{Tag: "price"},
		{Tag: "tracking", DependsOn: []string{"packages"}},
		{Tag: "label", DependsOn: []string{"packages"}},
		{Tag: "payment"},
		{Tag: "credit"},
		{Tag: "currency"},
	}
}

// OrdersDataset is the catalog entry for the "orders" dataset referenced by
// the spec's end-to-end scenarios.
func OrdersDataset() model.Dataset {
	return model.Dataset{
		ID: "orders",
		Groups: []model.FieldGroup{
			{
				Name: "core",
				Fields: []model.Field{
					{Key: "order_id", Label: "Order ID", Type: model.FieldNumber},
					{Key: "date_add", Label: "Date added", Type: model.FieldDateTime},
					{Key: "email", Label: "Email", Type: model.FieldText},
					{Key: "status_id", Label: "Status ID", Type: model.FieldNumber},
					{Key: "order_status_name", Label: "Status", Type: model.FieldText, Computed: true},
					{Key: "source_id", Label: "Source ID", Type: model.FieldNumber},
					{Key: "currency", Label: "Currency", Type: model.FieldText},
					{Key: "payment_done", Label: "Payment done", Type: model.FieldBoolean},
					{Key: "payment_status", Label: "Payment status", Type: model.FieldText, Computed: true},
					{Key: "courier_id", Label: "Courier ID", Type: model.FieldNumber},
					{Key: "courier_name", Label: "Courier", Type: model.FieldText, Computed: true},
					{Key: "warehouse_id", Label: "Warehouse ID", Type: model.FieldNumber},
					{Key: "warehouse_name", Label: "Warehouse", Type: model.FieldText, Computed: true},
					{Key: "products_count", Label: "Products count", Type: model.FieldNumber, Computed: true},
					{Key: "products_quantity", Label: "Products quantity", Type: model.FieldNumber, Computed: true},
					{Key: "products_value_brutto", Label: "Products value (gross)", Type: model.FieldCurrency, Computed: true},
					{Key: "products_value_netto", Label: "Products value (net)", Type: model.FieldCurrency, Computed: true},
					{Key: "order_value_brutto", Label: "Order value (gross)", Type: model.FieldCurrency, Computed: true},
					{Key: "order_value_netto", Label: "Order value (net)", Type: model.FieldCurrency, Computed: true},
					{Key: "delivery_price_netto", Label: "Delivery price (net)", Type: model.FieldCurrency, Computed: true},
					{Key: "want_invoice", Label: "Wants invoice", Type: model.FieldBoolean},
				},
			},
			{
				Name: "packages",
				Fields: []model.Field{
					{Key: "pkg1_tracking_number", Label: "Package 1 tracking #", Type: model.FieldText, Enrichment: "packages"},
					{Key: "pkg1_tracking_url", Label: "Package 1 tracking URL", Type: model.FieldText, Enrichment: "packages"},
					{Key: "pkg2_tracking_number", Label: "Package 2 tracking #", Type: model.FieldText, Enrichment: "packages"},
					{Key: "pkg2_tracking_url", Label: "Package 2 tracking URL", Type: model.FieldText, Enrichment: "packages"},
				},
			},
			{
				Name: "documents",
				Fields: []model.Field{
					{Key: "ds1_number", Label: "Document 1 number", Type: model.FieldText, Enrichment: "documents"},
					{Key: "ds1_date", Label: "Document 1 date", Type: model.FieldDate, Enrichment: "documents"},
					{Key: "ds2_number", Label: "Document 2 number", Type: model.FieldText, Enrichment: "documents"},
					{Key: "ds2_date", Label: "Document 2 date", Type: model.FieldDate, Enrichment: "documents"},
				},
			},
			{
				Name: "inventory",
				Fields: []model.Field{
					{Key: "unit_margin", Label: "Unit margin", Type: model.FieldCurrency, Enrichment: "inventory"},
					{Key: "margin_percent", Label: "Margin %", Type: model.FieldNumber, Enrichment: "inventory"},
				},
			},
			{
				Name: "tracking",
				Fields: []model.Field{
					{Key: "tracking_status", Label: "Latest tracking status", Type: model.FieldText, Enrichment: "tracking"},
					{Key: "tracking_event_count", Label: "Tracking events", Type: model.FieldNumber, Enrichment: "tracking"},
				},
			},
			{
				Name: "label",
				Fields: []model.Field{
					{Key: "label_available", Label: "Label available", Type: model.FieldBoolean, Enrichment: "label"},
					{Key: "label_url", Label: "Label URL", Type: model.FieldText, Enrichment: "label"},
					{Key: "pickup_protocol_available", Label: "Pickup protocol available", Type: model.FieldBoolean, Enrichment: "label"},
					{Key: "pickup_protocol_url", Label: "Pickup protocol URL", Type: model.FieldText, Enrichment: "label"},
				},
			},
			{
				Name: "payment",
				Fields: []model.Field{
					{Key: "last_payment_date", Label: "Last payment date", Type: model.FieldDate, Enrichment: "payment"},
					{Key: "last_payment_amount", Label: "Last payment amount", Type: model.FieldCurrency, Enrichment: "payment"},
					{Key: "payment_sum", Label: "Total paid", Type: model.FieldCurrency, Enrichment: "payment"},
					{Key: "payment_count", Label: "Payment count", Type: model.FieldNumber, Enrichment: "payment"},
				},
			},
			{
				Name: "credit",
				Fields: []model.Field{
					{Key: "credit_current_debt", Label: "Current debt", Type: model.FieldCurrency, Enrichment: "credit"},
					{Key: "credit_overdue_debt", Label: "Overdue debt", Type: model.FieldCurrency, Enrichment: "credit"},
					{Key: "credit_available", Label: "Available credit", Type: model.FieldCurrency, Enrichment: "credit"},
				},
			},
			{
				Name: "currency",
				Fields: []model.Field{
					{Key: "converted_currency", Label: "Converted currency", Type: model.FieldText, Enrichment: "currency"},
					{Key: "converted_rate_date", Label: "Rate date", Type: model.FieldDate, Enrichment: "currency"},
				},
			},
		},
	}
}
