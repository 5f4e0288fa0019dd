package ingest

import (
	"log"

	"github.com/remedian/remedian/internal/database"
)

// Registry maps alert sources to their adapters
type Registry struct {
	adapters map[database.AlertSource]SourceAdapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[database.AlertSource]SourceAdapter),
	}
}

// Register adds an adapter for its source
func (r *Registry) Register(adapter SourceAdapter) {
	r.adapters[adapter.Source()] = adapter
	log.Printf("Registered webhook adapter: %s", adapter.Source())
}

// Get returns the adapter for a source
func (r *Registry) Get(source database.AlertSource) (SourceAdapter, bool) {
	adapter, ok := r.adapters[source]
	return adapter, ok
}
