package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() *Catalog {
	c := New()
	c.RegisterDataset(OrdersDataset())
	for _, cap := range DefaultCapabilities() {
		c.RegisterCapability(cap)
	}
	return c
}

func TestGetDataset(t *testing.T) {
	c := newTestCatalog()
	ds, ok := c.GetDataset("orders")
	require.True(t, ok)
	assert.Equal(t, "orders", ds.ID)

	_, ok = c.GetDataset("nonexistent")
	assert.False(t, ok)
}

func TestGetRequiredEnrichmentsInfersShipmentEnricher(t *testing.T) {
	c := newTestCatalog()
	tags := c.GetRequiredEnrichments("orders", []string{"pkg1_tracking_number"}, false)
	assert.Equal(t, []string{"packages"}, tags)
}

func TestGetRequiredEnrichmentsRespectsDependencyOrder(t *testing.T) {
	c := newTestCatalog()
	// tracking depends on packages; selecting both fields must still place
	// packages before tracking regardless of selection order.
	tags := c.GetRequiredEnrichments("orders", []string{"tracking_status", "pkg1_tracking_number"}, false)
	require.Len(t, tags, 2)
	assert.Equal(t, "packages", tags[0])
	assert.Equal(t, "tracking", tags[1])
}

func TestGetRequiredEnrichmentsIncludesCurrencyWhenRequested(t *testing.T) {
	c := newTestCatalog()
	tags := c.GetRequiredEnrichments("orders", []string{"order_id"}, true)
	assert.Equal(t, []string{"currency"}, tags)
}

func TestGetRequiredEnrichmentsEmptySelectionNoCurrency(t *testing.T) {
	c := newTestCatalog()
	tags := c.GetRequiredEnrichments("orders", nil, false)
	assert.Empty(t, tags)
}

func TestGetRequiredEnrichmentsDeterministicAcrossRuns(t *testing.T) {
	c := newTestCatalog()
	fields := []string{"label_available", "tracking_status", "pkg1_tracking_number", "unit_margin"}
	first := c.GetRequiredEnrichments("orders", fields, false)
	second := c.GetRequiredEnrichments("orders", fields, false)
	assert.Equal(t, first, second)
}
