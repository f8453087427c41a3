package models

// DocumentSummary describes one completed upload as reported by the backend.
type DocumentSummary struct {
	Filename       string   `json:"filename"`
	NumChunks      int      `json:"num_chunks"`
	NumTables      int      `json:"num_tables"`
	NumParagraphs  int      `json:"num_paragraphs"`
	SampleSections []string `json:"sample_sections"`
}

type HealthStatus struct {
	Status          string `json:"status"`
	DocumentsLoaded int    `json:"documents_loaded"`
	TotalChunks     int    `json:"total_chunks"`
	EmbeddingModel  string `json:"embedding_model"`
}

type ModelOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelCatalog maps a provider name to the models the backend offers for it.
type ModelCatalog map[string][]ModelOption

// For returns the models known for provider. A missing provider yields nil.
func (c ModelCatalog) For(provider string) []ModelOption {
	if c == nil {
		return nil
	}
	return c[provider]
}
