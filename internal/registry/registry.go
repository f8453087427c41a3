// Package registry keeps the client-side list of documents ingested during a session.
package registry

import (
	"sync"

	"rag-doc-assistant/internal/models"
)

// Registry is append-only. Uploading the same filename twice records two
// entries, because the backend indexes every upload as new work.
type Registry struct {
	documents []models.DocumentSummary
	mu        sync.RWMutex
}

func New() *Registry {
	return &Registry{
		documents: make([]models.DocumentSummary, 0),
	}
}

func (r *Registry) Record(summary models.DocumentSummary) {
	summary.SampleSections = append([]string(nil), summary.SampleSections...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = append(r.documents, summary)
}

// ClearAll drops every entry. Callers must only invoke it after the backend
// confirmed that its documents were cleared.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = make([]models.DocumentSummary, 0)
}

// List returns the entries in upload order.
func (r *Registry) List() []models.DocumentSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.DocumentSummary, len(r.documents))
	for i, doc := range r.documents {
		doc.SampleSections = append([]string(nil), doc.SampleSections...)
		out[i] = doc
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}
