package models

import "time"

// Gateway request and response bodies. Snapshots are carried as any so this
// package stays free of the chat controller.

type QuestionRequest struct {
	Question string `json:"question"`
}

type ProviderRequest struct {
	Provider string `json:"provider"`
}

type SessionResponse struct {
	SessionID string            `json:"session_id"`
	CreatedAt time.Time         `json:"created_at"`
	Settings  Settings          `json:"settings"`
	Snapshot  any               `json:"snapshot"`
	Documents []DocumentSummary `json:"documents"`
	Uploading bool              `json:"uploading"`
}

type UploadResponse struct {
	Document  DocumentSummary   `json:"document"`
	Documents []DocumentSummary `json:"documents"`
}

type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

type ClearDocumentsResponse struct {
	Message  string `json:"message"`
	Snapshot any    `json:"snapshot"`
}

type HealthResponse struct {
	Status   string        `json:"status"`
	Sessions int           `json:"sessions"`
	Backend  *HealthStatus `json:"backend"`
}
