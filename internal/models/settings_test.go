package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, ProviderOpenAI, s.Provider)
	assert.Empty(t, s.Model)
	assert.Equal(t, 0.3, s.Temperature)
	assert.Equal(t, 5, s.TopK)
	assert.Equal(t, 500, s.ChunkSize)
	assert.Equal(t, 50, s.ChunkOverlap)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{name: "ollama provider", mutate: func(s *Settings) { s.Provider = ProviderOllama }},
		{name: "explicit model", mutate: func(s *Settings) { s.Model = "gpt-4" }},
		{name: "temperature bounds", mutate: func(s *Settings) { s.Temperature = 1 }},
		{name: "zero overlap", mutate: func(s *Settings) { s.ChunkOverlap = 0 }},
		{name: "top_k upper bound", mutate: func(s *Settings) { s.TopK = 15 }},
		{
			name:    "unknown provider",
			mutate:  func(s *Settings) { s.Provider = "anthropic" },
			wantErr: "provider must be one of [openai ollama]",
		},
		{
			name:    "missing provider",
			mutate:  func(s *Settings) { s.Provider = "" },
			wantErr: "provider is required",
		},
		{
			name:    "temperature too high",
			mutate:  func(s *Settings) { s.Temperature = 1.2 },
			wantErr: "temperature must be at most 1",
		},
		{
			name:    "negative temperature",
			mutate:  func(s *Settings) { s.Temperature = -0.1 },
			wantErr: "temperature must be at least 0",
		},
		{
			name:    "top_k zero",
			mutate:  func(s *Settings) { s.TopK = 0 },
			wantErr: "top_k must be at least 1",
		},
		{
			name:    "top_k too large",
			mutate:  func(s *Settings) { s.TopK = 16 },
			wantErr: "top_k must be at most 15",
		},
		{
			name:    "chunk size zero",
			mutate:  func(s *Settings) { s.ChunkSize = 0 },
			wantErr: "chunk_size must be greater than 0",
		},
		{
			name:    "overlap not smaller than chunk size",
			mutate:  func(s *Settings) { s.ChunkSize = 100; s.ChunkOverlap = 100 },
			wantErr: "chunk_overlap must be smaller than chunk_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)

			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWithProviderResetsModel(t *testing.T) {
	s := DefaultSettings()
	s.Model = "gpt-4o"
	s.TopK = 9

	next := s.WithProvider(ProviderOllama)

	assert.Equal(t, ProviderOllama, next.Provider)
	assert.Empty(t, next.Model)
	assert.Equal(t, 9, next.TopK)
	assert.Equal(t, "gpt-4o", s.Model, "original value must be untouched")
}

func TestModelCatalogFor(t *testing.T) {
	catalog := ModelCatalog{
		"openai": {{ID: "gpt-4o-mini", Name: "GPT-4o Mini"}},
	}

	assert.Len(t, catalog.For("openai"), 1)
	assert.Nil(t, catalog.For("ollama"))

	var empty ModelCatalog
	assert.Nil(t, empty.For("openai"))
}

func TestMessageCloneDoesNotAlias(t *testing.T) {
	section := "Access"
	original := Message{
		ID:      "msg-1",
		Role:    RoleAssistant,
		Content: "answer",
		Sources: []SourceReference{{ChunkText: "text", Source: "policy.docx", Section: &section, Score: 0.87, ChunkIndex: 3}},
	}

	clone := original.Clone()
	clone.Sources[0].Score = 0.1
	*clone.Sources[0].Section = "Other"

	assert.Equal(t, 0.87, original.Sources[0].Score)
	assert.Equal(t, "Access", *original.Sources[0].Section)
}
