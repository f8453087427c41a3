// Package backend talks to the document assistant backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "rag-doc-assistant/internal/errors"
	"rag-doc-assistant/internal/models"

	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response is read looking for a detail.
const maxErrorBody = 64 << 10

// File is a document picked for upload.
type File struct {
	Name string
	Data []byte
}

// Client is safe for concurrent use. It holds no per-request state.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient returns a client for the backend at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger.Named("backend"),
	}
}

// Upload sends one document for ingestion with the given chunking parameters.
func (c *Client) Upload(ctx context.Context, file File, chunkSize, chunkOverlap int) (*models.DocumentSummary, error) {
	if strings.TrimSpace(file.Name) == "" {
		return nil, apperrors.Validation("File name is required")
	}
	if len(file.Data) == 0 {
		return nil, apperrors.Validation("File is empty")
	}
	if chunkSize <= 0 {
		return nil, apperrors.Validation("chunk_size must be greater than 0")
	}
	if chunkOverlap < 0 {
		return nil, apperrors.Validation("chunk_overlap must be at least 0")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, apperrors.ErrUploadFailed.WithCause(err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, apperrors.ErrUploadFailed.WithCause(err)
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.ErrUploadFailed.WithCause(err)
	}

	query := url.Values{}
	query.Set("chunk_size", strconv.Itoa(chunkSize))
	query.Set("chunk_overlap", strconv.Itoa(chunkOverlap))

	var summary models.DocumentSummary
	err = c.do(ctx, http.MethodPost, "/api/upload?"+query.Encode(), mw.FormDataContentType(), &body, &summary, apperrors.ErrUploadFailed)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Ask sends one question. The request carries no conversation history.
func (c *Client) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperrors.Validation("Question must not be blank")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.ErrChatFailed.WithCause(err)
	}

	var answer models.AskResponse
	err = c.do(ctx, http.MethodPost, "/api/chat", "application/json", bytes.NewReader(payload), &answer, apperrors.ErrChatFailed)
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// ListDocuments returns the backend's own view of the ingested documents.
func (c *Client) ListDocuments(ctx context.Context) ([]models.DocumentSummary, error) {
	var docs []models.DocumentSummary
	if err := c.do(ctx, http.MethodGet, "/api/documents", "", nil, &docs, apperrors.ErrListDocumentsFailed); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.DocumentSummary{}
	}
	return docs, nil
}

// ClearDocuments removes every document from the backend index.
func (c *Client) ClearDocuments(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/documents", "", nil, nil, apperrors.ErrClearDocumentsFailed)
}

func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/health", "", nil, &status, apperrors.ErrHealthFailed); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListModels returns the provider to models catalog.
func (c *Client) ListModels(ctx context.Context) (models.ModelCatalog, error) {
	catalog := models.ModelCatalog{}
	if err := c.do(ctx, http.MethodGet, "/api/models", "", nil, &catalog, apperrors.ErrListModelsFailed); err != nil {
		return nil, err
	}
	return catalog, nil
}

// do performs one round trip. Every failure comes back as a copy of fail,
// carrying the backend detail when one was given. out may be nil when the
// success body is irrelevant.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any, fail *apperrors.StandardError) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fail.WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("backend request failed",
			zap.String("method", method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return fail.WithCause(err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail.WithDetail(readDetail(resp.Body)).
			WithStatus(resp.StatusCode).
			WithCause(fmt.Errorf("backend returned %s", resp.Status))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail.WithCause(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// readDetail extracts a string detail from an error body. Anything else,
// including FastAPI validation arrays, yields "".
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
