// Package catalog provides the static Dataset & Capability Catalog (C5):
// dataset field maps and the derivation of the enrichers a given field
// selection requires, in dependency order.
package catalog

import (
	"sort"
	"sync"

	"github.com/exportengine/engine/internal/model"
)

// Capability declares one enrichment tag and the tags it depends on. The
// order produced by GetRequiredEnrichments must respect this partial order
// (Design Note §9: "enricher ordering dependency").
type Capability struct {
	Tag       string
	DependsOn []string
}

// Catalog is the immutable, process-start-loaded dataset/capability map.
// Modeled on the dependency-ordered registry of work types in the teacher
// codebase, generalized from "work type" to "enrichment capability".
type Catalog struct {
	mu           sync.RWMutex
	datasets     map[string]model.Dataset
	capabilities map[string]Capability
}

// New creates an empty catalog. Use Register* to populate it at process
// start; the catalog is treated as immutable thereafter.
func New() *Catalog {
	return &Catalog{
		datasets:     make(map[string]model.Dataset),
		capabilities: make(map[string]Capability),
	}
}

// RegisterDataset adds or replaces a dataset definition.
func (c *Catalog) RegisterDataset(d model.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datasets[d.ID] = d
}

// RegisterCapability adds or replaces a capability declaration.
func (c *Catalog) RegisterCapability(cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capabilities[cap.Tag] = cap
}

// GetDataset returns a dataset definition by identifier.
func (c *Catalog) GetDataset(id string) (model.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.datasets[id]
	return d, ok
}

// GetRequiredEnrichments returns the ordered, deduplicated set of enrichment
// tags needed to populate selectedFields of dataset id, plus "currency" when
// requested. Order respects each capability's declared dependencies: a
// capability never appears before something it depends on.
func (c *Catalog) GetRequiredEnrichments(id string, selectedFields []string, currencyRequested bool) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dataset, ok := c.datasets[id]
	if !ok {
		return nil
	}

	needed := make(map[string]bool)
	for _, key := range selectedFields {
		field, ok := dataset.FieldByKey(key)
		if !ok || field.Enrichment == "" {
			continue
		}
		needed[field.Enrichment] = true
	}
	if currencyRequested {
		needed["currency"] = true
	}
	if len(needed) == 0 {
		return nil
	}

	return c.topoOrder(needed)
}

// topoOrder returns tags in needed sorted so that every tag's dependencies
// (that are themselves in needed) precede it. Tags with no declared
// dependency ordering break ties alphabetically for determinism.
func (c *Catalog) topoOrder(needed map[string]bool) []string {
	visited := make(map[string]bool)
	var order []string

	var visit func(tag string)
	visit = func(tag string) {
		if visited[tag] {
			return
		}
		visited[tag] = true
		if cap, ok := c.capabilities[tag]; ok {
			deps := append([]string(nil), cap.DependsOn...)
			sort.Strings(deps)
			for _, dep := range deps {
				if needed[dep] {
					visit(dep)
				}
			}
		}
		order = append(order, tag)
	}

	tags := make([]string, 0, len(needed))
	for tag := range needed {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		visit(tag)
	}

	return order
}
